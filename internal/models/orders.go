// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package models holds the plain data types shared by the feature pipeline,
// the lookup store and the HTTP API.
package models

// Evaluation sets an order can belong to.
const (
	EvalSetPrior = "prior"
	EvalSetTrain = "train"
	EvalSetTest  = "test"
)

// Order is one row of the order history. DaysSincePrior is nil for a user's
// first order in the source data and is stored as 0 once loaded.
type Order struct {
	OrderID        int64    `json:"order_id"`
	UserID         int64    `json:"user_id"`
	EvalSet        string   `json:"eval_set"`
	OrderNumber    int      `json:"order_number"`
	OrderDOW       int      `json:"order_dow"`
	OrderHourOfDay int      `json:"order_hour_of_day"`
	DaysSincePrior *float64 `json:"days_since_prior_order"`
}

// OrderProduct is a single line item of an order.
type OrderProduct struct {
	OrderID        int64 `json:"order_id"`
	ProductID      int64 `json:"product_id"`
	AddToCartOrder int   `json:"add_to_cart_order"`
	Reordered      int   `json:"reordered"`
}

// Product is a catalog entry.
type Product struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	AisleID      int64  `json:"aisle_id"`
	DepartmentID int64  `json:"department_id"`
}

// Aisle names a product aisle.
type Aisle struct {
	AisleID int64  `json:"aisle_id"`
	Aisle   string `json:"aisle"`
}

// Department names a product department.
type Department struct {
	DepartmentID int64  `json:"department_id"`
	Department   string `json:"department"`
}

// ProductMetadata is a product denormalized with its aisle and department
// names. It is what the recommendation response shows to the shopper.
type ProductMetadata struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Aisle       string `json:"aisle"`
	Department  string `json:"department"`
}

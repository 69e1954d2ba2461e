// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package models

// FeatureColumns is the column order the model was trained on. CSV rows sent
// to the model endpoint must follow it exactly.
var FeatureColumns = [NumFeatures]string{
	"user_orders",
	"user_periods",
	"user_mean_days_since_prior",
	"user_products",
	"user_distinct_products",
	"user_reorder_ratio",
	"prod_orders",
	"prod_reorders",
	"prod_first_orders",
	"prod_second_orders",
}

// NumFeatures is the width of a FeatureVector.
const NumFeatures = 10

// FeatureVector holds one candidate's features in FeatureColumns order.
type FeatureVector [NumFeatures]float64

// UserFeatures summarizes one user's prior order history.
type UserFeatures struct {
	UserID                 int64   `json:"user_id"`
	UserOrders             float64 `json:"user_orders"`
	UserPeriods            float64 `json:"user_periods"`
	UserMeanDaysSincePrior float64 `json:"user_mean_days_since_prior"`
	UserProducts           float64 `json:"user_products"`
	UserDistinctProducts   float64 `json:"user_distinct_products"`
	UserReorderRatio       float64 `json:"user_reorder_ratio"`
}

// ProductFeatures summarizes how a product is bought across all users.
type ProductFeatures struct {
	ProductID        int64   `json:"product_id"`
	ProdOrders       float64 `json:"prod_orders"`
	ProdReorders     float64 `json:"prod_reorders"`
	ProdFirstOrders  float64 `json:"prod_first_orders"`
	ProdSecondOrders float64 `json:"prod_second_orders"`
}

// UserProductFeatures is one row of the lookup table: a (user, product) pair
// the user has bought before, with the user and product features joined in.
type UserProductFeatures struct {
	UserID    int64         `json:"user_id"`
	ProductID int64         `json:"product_id"`
	Features  FeatureVector `json:"features"`
}

// UPFeatures are per-(user, product) history statistics. They are exported
// in bulk for offline training but are not part of the served vector.
type UPFeatures struct {
	UserID             int64   `json:"user_id"`
	ProductID          int64   `json:"product_id"`
	UPOrderCount       int64   `json:"up_order_count"`
	UPFirstOrderNumber int64   `json:"up_first_order_number"`
	UPLastOrderNumber  int64   `json:"up_last_order_number"`
	UPAvgCartPosition  float64 `json:"up_avg_cart_position"`
}

// TrainingRow is a labelled example: a product in a user's train order with
// the user and product features as they stood before that order.
type TrainingRow struct {
	UserID    int64         `json:"user_id"`
	ProductID int64         `json:"product_id"`
	Reordered int           `json:"reordered"`
	Features  FeatureVector `json:"features"`
}

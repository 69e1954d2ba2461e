// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package recommend

import (
	"context"

	"github.com/tomtom215/basketcast/internal/models"
)

// DefaultTopK is the number of recommendations returned
const DefaultTopK = 10

// MaxRequestedProducts bounds Request.ProductIDs
const MaxRequestedProducts = 500

// Request asks for recommendations for one user. ProductIDs are extra
// candidates scored in addition to the user's purchase history.
type Request struct {
	UserID     int64   `json:"user_id" validate:"required,min=1"`
	ProductIDs []int64 `json:"product_ids,omitempty" validate:"max=500,dive,min=1"`
}

// FeatureSource is the read side of the lookup store
type FeatureSource interface {
	QueryUserProducts(ctx context.Context, userID int64) ([]models.UserProductFeatures, error)
	BatchGetUserFeatures(ctx context.Context, userIDs []int64) ([]models.UserFeatures, error)
	BatchGetProductFeatures(ctx context.Context, productIDs []int64) ([]models.ProductFeatures, error)
	BatchGetProductMetadata(ctx context.Context, productIDs []int64) ([]models.ProductMetadata, error)
	GetScaler(ctx context.Context) (*models.ScalerParams, error)
}

// candidate is one row sent to the model
type candidate struct {
	productID int64
	vector    models.FeatureVector
}

// scored is a candidate with its predicted probability
type scored struct {
	productID   int64
	probability float64
}

// Outcomes recorded in the recommendations_served metric
const (
	outcomeServed   = "served"
	outcomeEmpty    = "empty"
	outcomeError    = "error"
	outcomeCacheHit = "cache_hit"
)

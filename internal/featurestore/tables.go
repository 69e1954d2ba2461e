// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package featurestore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/models"
)

const scalerKey = "scaler:current"

func tablePrefix(table string) []byte {
	return []byte(table + ":")
}

func idKey(table string, id int64) []byte {
	return []byte(fmt.Sprintf("%s:%020d", table, id))
}

func userProductPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("%s:%020d:", TableUserProductFeatures, userID))
}

func userProductKey(userID, productID int64) []byte {
	return []byte(fmt.Sprintf("%s:%020d:%020d", TableUserProductFeatures, userID, productID))
}

func productKey(id int64) []byte        { return idKey(TableProducts, id) }
func userFeaturesKey(id int64) []byte   { return idKey(TableUserFeatures, id) }
func productFeatureKey(id int64) []byte { return idKey(TableProductFeatures, id) }

// PutProductMetadata bulk-writes the products table
func (s *Store) PutProductMetadata(ctx context.Context, rows []models.ProductMetadata) error {
	return putAll(ctx, s, rows, func(r *models.ProductMetadata) []byte { return productKey(r.ProductID) })
}

// PutUserFeatures bulk-writes the user_features table
func (s *Store) PutUserFeatures(ctx context.Context, rows []models.UserFeatures) error {
	return putAll(ctx, s, rows, func(r *models.UserFeatures) []byte { return userFeaturesKey(r.UserID) })
}

// PutProductFeatures bulk-writes the product_features table
func (s *Store) PutProductFeatures(ctx context.Context, rows []models.ProductFeatures) error {
	return putAll(ctx, s, rows, func(r *models.ProductFeatures) []byte { return productFeatureKey(r.ProductID) })
}

// PutUserProductFeatures bulk-writes lookup rows
func (s *Store) PutUserProductFeatures(ctx context.Context, rows []models.UserProductFeatures) error {
	return putAll(ctx, s, rows, func(r *models.UserProductFeatures) []byte {
		return userProductKey(r.UserID, r.ProductID)
	})
}

// GetUserFeatures returns one user's features or ErrNotFound
func (s *Store) GetUserFeatures(_ context.Context, userID int64) (*models.UserFeatures, error) {
	var u models.UserFeatures
	if err := s.get(userFeaturesKey(userID), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetProductFeatures returns one product's features or ErrNotFound
func (s *Store) GetProductFeatures(_ context.Context, productID int64) (*models.ProductFeatures, error) {
	var p models.ProductFeatures
	if err := s.get(productFeatureKey(productID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductMetadata returns one product's catalog entry or ErrNotFound
func (s *Store) GetProductMetadata(_ context.Context, productID int64) (*models.ProductMetadata, error) {
	var m models.ProductMetadata
	if err := s.get(productKey(productID), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// BatchGetUserFeatures returns the features of the users that exist
func (s *Store) BatchGetUserFeatures(ctx context.Context, userIDs []int64) ([]models.UserFeatures, error) {
	return batchGet[models.UserFeatures](ctx, s, userIDs, userFeaturesKey)
}

// BatchGetProductFeatures returns the features of the products that exist
func (s *Store) BatchGetProductFeatures(ctx context.Context, productIDs []int64) ([]models.ProductFeatures, error) {
	return batchGet[models.ProductFeatures](ctx, s, productIDs, productFeatureKey)
}

// BatchGetProductMetadata returns the catalog entries of the products that exist
func (s *Store) BatchGetProductMetadata(ctx context.Context, productIDs []int64) ([]models.ProductMetadata, error) {
	return batchGet[models.ProductMetadata](ctx, s, productIDs, productKey)
}

// QueryUserProducts returns every lookup row of a user in product_id order.
// A user without history yields an empty slice.
func (s *Store) QueryUserProducts(ctx context.Context, userID int64) ([]models.UserProductFeatures, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var rows []models.UserProductFeatures
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = userProductPrefix(userID)
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var row models.UserProductFeatures
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			}); err != nil {
				return fmt.Errorf("unmarshal %s: %w", it.Item().Key(), err)
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query user %d: %w", userID, err)
	}
	return rows, nil
}

// PutScaler stores the fitted scaler used at inference
func (s *Store) PutScaler(_ context.Context, p *models.ScalerParams) error {
	return s.put([]byte(scalerKey), p)
}

// GetScaler returns the stored scaler or ErrNotFound
func (s *Store) GetScaler(_ context.Context) (*models.ScalerParams, error) {
	var p models.ScalerParams
	if err := s.get([]byte(scalerKey), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

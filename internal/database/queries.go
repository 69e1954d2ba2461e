// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tomtom215/basketcast/internal/models"
)

// userBudgetClause limits rows to user_id < maxUserID. Both placeholders take
// maxUserID; 0 disables the limit.
const userBudgetClause = "(? = 0 OR user_id < ?)"

var featureColumnList = strings.Join(models.FeatureColumns[:], ", ")

// UserFeatures returns user feature rows for users below maxUserID
func (db *DB) UserFeatures(ctx context.Context, maxUserID int64) ([]models.UserFeatures, error) {
	query := `SELECT user_id, user_orders, user_periods, user_mean_days_since_prior,
			user_products, user_distinct_products, user_reorder_ratio
		FROM user_features
		WHERE ` + userBudgetClause + `
		ORDER BY user_id`

	rows, err := db.conn.QueryContext(ctx, query, maxUserID, maxUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user features: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.UserFeatures
	for rows.Next() {
		var u models.UserFeatures
		if err := rows.Scan(&u.UserID, &u.UserOrders, &u.UserPeriods, &u.UserMeanDaysSincePrior,
			&u.UserProducts, &u.UserDistinctProducts, &u.UserReorderRatio); err != nil {
			return nil, fmt.Errorf("failed to scan user features: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ProductFeatures returns every product feature row
func (db *DB) ProductFeatures(ctx context.Context) ([]models.ProductFeatures, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT product_id, prod_orders, prod_reorders, prod_first_orders, prod_second_orders
		FROM product_features
		ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query product features: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.ProductFeatures
	for rows.Next() {
		var p models.ProductFeatures
		if err := rows.Scan(&p.ProductID, &p.ProdOrders, &p.ProdReorders, &p.ProdFirstOrders, &p.ProdSecondOrders); err != nil {
			return nil, fmt.Errorf("failed to scan product features: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProductMetadata returns every product with its aisle and department names
func (db *DB) ProductMetadata(ctx context.Context) ([]models.ProductMetadata, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT product_id, product_name, aisle, department
		FROM product_metadata
		ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query product metadata: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.ProductMetadata
	for rows.Next() {
		var m models.ProductMetadata
		var name, aisle, department sql.NullString
		if err := rows.Scan(&m.ProductID, &name, &aisle, &department); err != nil {
			return nil, fmt.Errorf("failed to scan product metadata: %w", err)
		}
		m.ProductName = name.String
		m.Aisle = aisle.String
		m.Department = department.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// UPFeatures returns the per-(user, product) history rows for users below maxUserID
func (db *DB) UPFeatures(ctx context.Context, maxUserID int64) ([]models.UPFeatures, error) {
	query := `SELECT user_id, product_id, up_order_count, up_first_order_number,
			up_last_order_number, up_avg_cart_position
		FROM up_features
		WHERE ` + userBudgetClause + `
		ORDER BY user_id, product_id`

	rows, err := db.conn.QueryContext(ctx, query, maxUserID, maxUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query up features: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.UPFeatures
	for rows.Next() {
		var f models.UPFeatures
		if err := rows.Scan(&f.UserID, &f.ProductID, &f.UPOrderCount, &f.UPFirstOrderNumber,
			&f.UPLastOrderNumber, &f.UPAvgCartPosition); err != nil {
			return nil, fmt.Errorf("failed to scan up features: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UserProductFeatures returns the lookup rows for users below maxUserID
func (db *DB) UserProductFeatures(ctx context.Context, maxUserID int64) ([]models.UserProductFeatures, error) {
	var out []models.UserProductFeatures
	err := db.EachUserProductFeatures(ctx, maxUserID, func(row models.UserProductFeatures) error {
		out = append(out, row)
		return nil
	})
	return out, err
}

// EachUserProductFeatures streams the lookup rows for users below maxUserID
// to fn in (user_id, product_id) order. Iteration stops at the first error
// returned by fn.
func (db *DB) EachUserProductFeatures(ctx context.Context, maxUserID int64, fn func(models.UserProductFeatures) error) error {
	query := `SELECT user_id, product_id, ` + featureColumnList + `
		FROM user_product_features
		WHERE ` + userBudgetClause + `
		ORDER BY user_id, product_id`

	rows, err := db.conn.QueryContext(ctx, query, maxUserID, maxUserID)
	if err != nil {
		return fmt.Errorf("failed to query user product features: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var row models.UserProductFeatures
		dest := make([]interface{}, 0, 2+models.NumFeatures)
		dest = append(dest, &row.UserID, &row.ProductID)
		for i := range row.Features {
			dest = append(dest, &row.Features[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan user product features: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// TrainingSet returns the labelled training rows built with BuildOptions.Datasets
func (db *DB) TrainingSet(ctx context.Context) ([]models.TrainingRow, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT user_id, product_id, reordered, `+featureColumnList+`
		FROM training_set
		ORDER BY user_id, product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query training set: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.TrainingRow
	for rows.Next() {
		var row models.TrainingRow
		dest := []interface{}{&row.UserID, &row.ProductID, &row.Reordered}
		for i := range row.Features {
			dest = append(dest, &row.Features[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan training row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TestSet returns the candidate rows of test-set users built with BuildOptions.Datasets
func (db *DB) TestSet(ctx context.Context) ([]models.UserProductFeatures, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT user_id, product_id, `+featureColumnList+`
		FROM test_set
		ORDER BY user_id, product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query test set: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.UserProductFeatures
	for rows.Next() {
		var row models.UserProductFeatures
		dest := []interface{}{&row.UserID, &row.ProductID}
		for i := range row.Features {
			dest = append(dest, &row.Features[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan test row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

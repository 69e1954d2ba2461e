// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/models"
)

// BuildOptions controls which optional tables BuildFeatures materializes
type BuildOptions struct {
	// Datasets also builds training_set and test_set
	Datasets bool
}

// BuildReport holds row counts of the materialized feature tables
type BuildReport struct {
	PriorLines      int64         `json:"prior_lines"`
	Users           int64         `json:"users"`
	Products        int64         `json:"products"`
	UPPairs         int64         `json:"up_pairs"`
	LookupRows      int64         `json:"lookup_rows"`
	ProductMetadata int64         `json:"product_metadata"`
	TrainingRows    int64         `json:"training_rows"`
	TestRows        int64         `json:"test_rows"`
	Duration        time.Duration `json:"duration"`
}

// userFeatureColumns and productFeatureColumns split models.FeatureColumns
// by the table that owns them.
var (
	userFeatureColumns    = models.FeatureColumns[:6]
	productFeatureColumns = models.FeatureColumns[6:]
)

// featureSelectList renders the ten feature columns in canonical order from
// user_features u and product_features p, filling misses from the left
// joins with 0.
func featureSelectList() string {
	cols := make([]string, 0, models.NumFeatures)
	for _, c := range userFeatureColumns {
		cols = append(cols, fmt.Sprintf("COALESCE(u.%s, 0) AS %s", c, c))
	}
	for _, c := range productFeatureColumns {
		cols = append(cols, fmt.Sprintf("COALESCE(p.%s, 0) AS %s", c, c))
	}
	return strings.Join(cols, ",\n\t\t\t")
}

const orderProductsPriorSQL = `
	CREATE OR REPLACE TABLE order_products_prior AS
	SELECT
		o.user_id,
		o.order_id,
		o.order_number,
		o.days_since_prior_order,
		op.product_id,
		op.add_to_cart_order,
		op.reordered
	FROM orders o
	JOIN order_products op ON op.order_id = o.order_id
	WHERE o.eval_set = 'prior'`

// userFeaturesSQL joins order-level patterns with product-level patterns.
// The reorder ratio denominator counts lines from repeat orders only.
const userFeaturesSQL = `
	CREATE OR REPLACE TABLE user_features AS
	WITH order_stats AS (
		SELECT
			user_id,
			CAST(MAX(order_number) AS DOUBLE) AS user_orders,
			CAST(SUM(days_since_prior_order) AS DOUBLE) AS user_periods,
			CAST(AVG(days_since_prior_order) AS DOUBLE) AS user_mean_days_since_prior
		FROM orders
		WHERE eval_set = 'prior'
		GROUP BY user_id
	),
	product_stats AS (
		SELECT
			user_id,
			CAST(COUNT(product_id) AS DOUBLE) AS user_products,
			CAST(COUNT(DISTINCT product_id) AS DOUBLE) AS user_distinct_products,
			CASE
				WHEN COUNT(*) FILTER (WHERE order_number > 1) = 0 THEN 0.0
				ELSE CAST(SUM(CASE WHEN reordered = 1 THEN 1 ELSE 0 END) AS DOUBLE)
					/ COUNT(*) FILTER (WHERE order_number > 1)
			END AS user_reorder_ratio
		FROM order_products_prior
		GROUP BY user_id
	)
	SELECT
		o.user_id,
		o.user_orders,
		o.user_periods,
		o.user_mean_days_since_prior,
		p.user_products,
		p.user_distinct_products,
		p.user_reorder_ratio
	FROM order_stats o
	JOIN product_stats p ON p.user_id = o.user_id`

// productFeaturesSQL numbers each user's purchases of a product in order
// sequence to count first and second purchases.
const productFeaturesSQL = `
	CREATE OR REPLACE TABLE product_features AS
	WITH seq AS (
		SELECT
			product_id,
			reordered,
			ROW_NUMBER() OVER (PARTITION BY user_id, product_id ORDER BY order_number) AS product_seq_time
		FROM order_products_prior
	)
	SELECT
		product_id,
		CAST(COUNT(*) AS DOUBLE) AS prod_orders,
		CAST(SUM(CASE WHEN reordered = 1 THEN 1 ELSE 0 END) AS DOUBLE) AS prod_reorders,
		CAST(SUM(CASE WHEN product_seq_time = 1 THEN 1 ELSE 0 END) AS DOUBLE) AS prod_first_orders,
		CAST(SUM(CASE WHEN product_seq_time = 2 THEN 1 ELSE 0 END) AS DOUBLE) AS prod_second_orders
	FROM seq
	GROUP BY product_id`

const upFeaturesSQL = `
	CREATE OR REPLACE TABLE up_features AS
	SELECT
		p.user_id,
		p.product_id,
		COUNT(*) AS up_order_count,
		MIN(p.order_number) AS up_first_order_number,
		MAX(p.order_number) AS up_last_order_number,
		CAST(AVG(p.add_to_cart_order) AS DOUBLE) AS up_avg_cart_position
	FROM order_products_prior p
	WHERE NOT EXISTS (
		SELECT 1 FROM orders t
		WHERE t.eval_set = 'train' AND t.user_id = p.user_id AND t.order_id = p.order_id
	)
	GROUP BY p.user_id, p.product_id`

const productMetadataSQL = `
	CREATE OR REPLACE TABLE product_metadata AS
	SELECT
		p.product_id,
		p.product_name,
		a.aisle,
		d.department
	FROM products p
	JOIN aisles a ON a.aisle_id = p.aisle_id
	JOIN departments d ON d.department_id = p.department_id`

func userProductFeaturesSQL() string {
	return `
	CREATE OR REPLACE TABLE user_product_features AS
	SELECT
		c.user_id,
		c.product_id,
		` + featureSelectList() + `
	FROM (SELECT DISTINCT user_id, product_id FROM order_products_prior) c
	LEFT JOIN user_features u ON u.user_id = c.user_id
	LEFT JOIN product_features p ON p.product_id = c.product_id`
}

func trainingSetSQL() string {
	return `
	CREATE OR REPLACE TABLE training_set AS
	SELECT
		t.user_id,
		op.product_id,
		op.reordered,
		` + featureSelectList() + `
	FROM order_products op
	JOIN orders t ON t.order_id = op.order_id AND t.eval_set = 'train'
	LEFT JOIN user_features u ON u.user_id = t.user_id
	LEFT JOIN product_features p ON p.product_id = op.product_id`
}

func testSetSQL() string {
	return `
	CREATE OR REPLACE TABLE test_set AS
	SELECT
		t.user_id,
		c.product_id,
		` + featureSelectList() + `
	FROM orders t
	JOIN (SELECT DISTINCT user_id, product_id FROM order_products_prior) c ON c.user_id = t.user_id
	LEFT JOIN user_features u ON u.user_id = t.user_id
	LEFT JOIN product_features p ON p.product_id = c.product_id
	WHERE t.eval_set = 'test'`
}

type buildStep struct {
	name string
	sql  string
}

// BuildFeatures materializes the feature tables from the loaded sources.
func (db *DB) BuildFeatures(ctx context.Context, opts BuildOptions) (*BuildReport, error) {
	start := time.Now()

	steps := []buildStep{
		{"order_products_prior", orderProductsPriorSQL},
		{"user_features", userFeaturesSQL},
		{"product_features", productFeaturesSQL},
		{"up_features", upFeaturesSQL},
		{"product_metadata", productMetadataSQL},
		{"user_product_features", userProductFeaturesSQL()},
	}
	if opts.Datasets {
		steps = append(steps,
			buildStep{"training_set", trainingSetSQL()},
			buildStep{"test_set", testSetSQL()},
		)
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.conn.ExecContext(ctx, step.sql); err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", step.name, err)
		}
		logging.Debug().Str("table", step.name).Dur("duration", time.Since(stepStart)).Msg("Built feature table")
	}

	report := &BuildReport{}
	counts := []rowCount{
		{"order_products_prior", &report.PriorLines},
		{"user_features", &report.Users},
		{"product_features", &report.Products},
		{"up_features", &report.UPPairs},
		{"user_product_features", &report.LookupRows},
		{"product_metadata", &report.ProductMetadata},
	}
	if opts.Datasets {
		counts = append(counts,
			rowCount{"training_set", &report.TrainingRows},
			rowCount{"test_set", &report.TestRows},
		)
	}
	if err := db.fillCounts(ctx, counts); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)

	logging.Info().
		Int64("users", report.Users).
		Int64("products", report.Products).
		Int64("lookup_rows", report.LookupRows).
		Dur("duration", report.Duration).
		Msg("Built feature tables")

	return report, nil
}

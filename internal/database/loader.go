// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/basketcast/internal/logging"
)

// ErrSourceMissing is returned when a required CSV file does not exist
var ErrSourceMissing = errors.New("source file missing")

// SourceFiles lists the CSV files of one order-history snapshot.
// OrderProducts may name several files (prior and train line items); they
// are loaded into the same table.
type SourceFiles struct {
	Orders        string
	Products      string
	Aisles        string
	Departments   string
	OrderProducts []string
}

// LoadReport holds row counts after a load
type LoadReport struct {
	Orders        int64         `json:"orders"`
	Products      int64         `json:"products"`
	Aisles        int64         `json:"aisles"`
	Departments   int64         `json:"departments"`
	OrderProducts int64         `json:"order_products"`
	Duration      time.Duration `json:"duration"`
}

// orderProductsFiles are the line-item file names probed in a data directory
var orderProductsFiles = []string{
	"order_products__prior.csv",
	"order_products__train.csv",
	"order_products.csv",
}

// DefaultSourceFiles returns the conventional file layout of dir.
// Line-item files are included only when present.
func DefaultSourceFiles(dir string) SourceFiles {
	files := SourceFiles{
		Orders:      filepath.Join(dir, "orders.csv"),
		Products:    filepath.Join(dir, "products.csv"),
		Aisles:      filepath.Join(dir, "aisles.csv"),
		Departments: filepath.Join(dir, "departments.csv"),
	}
	for _, name := range orderProductsFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			files.OrderProducts = append(files.OrderProducts, path)
		}
	}
	return files
}

// Validate checks that every named file exists
func (f SourceFiles) Validate() error {
	if len(f.OrderProducts) == 0 {
		return fmt.Errorf("%w: no order_products files", ErrSourceMissing)
	}
	paths := append([]string{f.Orders, f.Products, f.Aisles, f.Departments}, f.OrderProducts...)
	for _, path := range paths {
		if path == "" {
			return fmt.Errorf("%w: empty path", ErrSourceMissing)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSourceMissing, path, err)
		}
	}
	return nil
}

// LoadSources replaces the source tables with the contents of the CSV files.
// The load runs in one transaction so a failed file leaves the previous
// snapshot in place. Null days_since_prior_order values become 0.
func (db *DB) LoadSources(ctx context.Context, files SourceFiles) (*LoadReport, error) {
	if err := files.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range loadStatements(files) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to load sources: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit load: %w", err)
	}

	report := &LoadReport{Duration: time.Since(start)}
	counts := []rowCount{
		{"orders", &report.Orders},
		{"products", &report.Products},
		{"aisles", &report.Aisles},
		{"departments", &report.Departments},
		{"order_products", &report.OrderProducts},
	}
	if err := db.fillCounts(ctx, counts); err != nil {
		return nil, err
	}

	logging.Info().
		Int64("orders", report.Orders).
		Int64("products", report.Products).
		Int64("order_products", report.OrderProducts).
		Dur("duration", report.Duration).
		Msg("Loaded order history")

	return report, nil
}

func loadStatements(files SourceFiles) []string {
	csv := func(path string) string {
		return fmt.Sprintf("read_csv_auto(%s, header = true)", quoteLiteral(path))
	}

	quoted := make([]string, len(files.OrderProducts))
	for i, path := range files.OrderProducts {
		quoted[i] = quoteLiteral(path)
	}
	orderProducts := fmt.Sprintf("read_csv_auto([%s], header = true)", strings.Join(quoted, ", "))

	return []string{
		"DELETE FROM orders",
		"DELETE FROM products",
		"DELETE FROM aisles",
		"DELETE FROM departments",
		"DELETE FROM order_products",
		`INSERT INTO orders
			SELECT
				CAST(order_id AS BIGINT),
				CAST(user_id AS BIGINT),
				CAST(eval_set AS VARCHAR),
				CAST(order_number AS INTEGER),
				CAST(order_dow AS INTEGER),
				CAST(order_hour_of_day AS INTEGER),
				COALESCE(CAST(days_since_prior_order AS DOUBLE), 0)
			FROM ` + csv(files.Orders),
		`INSERT INTO products
			SELECT
				CAST(product_id AS BIGINT),
				CAST(product_name AS VARCHAR),
				CAST(aisle_id AS BIGINT),
				CAST(department_id AS BIGINT)
			FROM ` + csv(files.Products),
		`INSERT INTO aisles
			SELECT CAST(aisle_id AS BIGINT), CAST(aisle AS VARCHAR)
			FROM ` + csv(files.Aisles),
		`INSERT INTO departments
			SELECT CAST(department_id AS BIGINT), CAST(department AS VARCHAR)
			FROM ` + csv(files.Departments),
		`INSERT INTO order_products
			SELECT
				CAST(order_id AS BIGINT),
				CAST(product_id AS BIGINT),
				CAST(add_to_cart_order AS INTEGER),
				COALESCE(CAST(reordered AS INTEGER), 0)
			FROM ` + orderProducts,
	}
}

// rowCount pairs a table with the report field receiving its row count
type rowCount struct {
	table string
	dst   *int64
}

func (db *DB) fillCounts(ctx context.Context, counts []rowCount) error {
	for _, c := range counts {
		n, err := db.countRows(ctx, c.table)
		if err != nil {
			return err
		}
		*c.dst = n
	}
	return nil
}

// countRows returns the row count of a known table
func (db *DB) countRows(ctx context.Context, table string) (int64, error) {
	if !knownTables[table] {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// knownTables guards the table names that are interpolated into SQL
var knownTables = map[string]bool{
	"orders":                true,
	"products":              true,
	"aisles":                true,
	"departments":           true,
	"order_products":        true,
	"order_products_prior":  true,
	"user_features":         true,
	"product_features":      true,
	"up_features":           true,
	"user_product_features": true,
	"product_metadata":      true,
	"training_set":          true,
	"test_set":              true,
	"ingested_events":       true,
}

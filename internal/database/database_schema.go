// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
database_schema.go - Database Schema Management

Source tables mirror the CSV files of the order history and are created
up front so an empty database can still answer queries. Derived feature
tables are rebuilt by BuildFeatures with CREATE OR REPLACE TABLE and are
therefore not declared here.

Tables:
  - orders: one row per order, days_since_prior_order null-filled with 0
  - products, aisles, departments: catalog
  - order_products: prior and train line items
  - ingested_events: archive of events consumed from the stream
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
)

// CreateTables creates the source and archive tables if they do not exist
func (db *DB) CreateTables(ctx context.Context) error {
	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			eval_set VARCHAR NOT NULL,
			order_number INTEGER NOT NULL,
			order_dow INTEGER,
			order_hour_of_day INTEGER,
			days_since_prior_order DOUBLE NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			product_id BIGINT NOT NULL,
			product_name VARCHAR,
			aisle_id BIGINT,
			department_id BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS aisles (
			aisle_id BIGINT NOT NULL,
			aisle VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS departments (
			department_id BIGINT NOT NULL,
			department VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS order_products (
			order_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			add_to_cart_order INTEGER,
			reordered INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ingested_events (
			event_id VARCHAR PRIMARY KEY,
			event_type VARCHAR NOT NULL,
			user_id BIGINT,
			partition_key UINTEGER,
			source VARCHAR,
			payload VARCHAR NOT NULL,
			received_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingested_events_received_at ON ingested_events(received_at)`,
	}
}

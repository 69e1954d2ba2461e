// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package database is the batch feature engine for Basketcast.
//
// # Overview
//
// The package wraps an embedded DuckDB database. Raw order history is loaded
// from CSV, aggregated into feature tables with plain SQL, checked for
// integrity and exported to parquet. The same database also keeps an archive
// of events consumed from the event stream.
//
// # Architecture
//
//   - database.go: lifecycle (open, pool settings, checkpoint, close)
//   - database_schema.go: source and archive table definitions
//   - loader.go: CSV loading with read_csv_auto
//   - features.go: user, product, user-product and lookup feature SQL
//   - validate.go: post-build integrity checks
//   - queries.go: row readers used to publish the lookup store
//   - export.go: COPY ... (FORMAT PARQUET) bulk export
//   - events.go: ingested event archive
//
// # Feature Tables
//
// BuildFeatures materializes the following tables from the loaded sources:
//
//   - order_products_prior: prior-order line items joined with their order
//   - user_features: per-user order and reorder statistics
//   - product_features: per-product order counts and first/second purchase counts
//   - up_features: per-(user, product) history, excluding train orders
//   - user_product_features: distinct prior pairs with the ten model features
//   - product_metadata: products joined with aisle and department names
//   - training_set and test_set: model training inputs
//
// Missing features in left joins are filled with 0, matching how the model
// was trained.
//
// # Thread Safety
//
// DB is safe for concurrent use. database/sql manages the connection pool and
// DuckDB serializes conflicting writes.
package database

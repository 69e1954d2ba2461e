// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/basketcast/internal/logging"
)

// ExportTables are the feature tables written to parquet by a pipeline run,
// in export order.
var ExportTables = []string{
	"user_features",
	"product_features",
	"up_features",
	"user_product_features",
	"product_metadata",
	"training_set",
	"test_set",
}

// ExportParquet writes table to dir/<table>.parquet with ZSTD compression,
// overwriting any previous export. It returns the file path.
func (db *DB) ExportParquet(ctx context.Context, table, dir string) (string, error) {
	if !knownTables[table] {
		return "", fmt.Errorf("unknown table %q", table)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, table+".parquet")
	query := fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET, COMPRESSION ZSTD)", table, quoteLiteral(path))
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return "", fmt.Errorf("failed to export %s: %w", table, err)
	}

	logging.Debug().Str("table", table).Str("path", path).Msg("Exported parquet")
	return path, nil
}

// TableExists reports whether a table is present in the main schema
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'main' AND table_name = ?`,
		table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return n > 0, nil
}

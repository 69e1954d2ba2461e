// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package database

import (
	"context"
	"fmt"
)

// Violation is one failed integrity rule with the number of offending rows
type Violation struct {
	Rule  string `json:"rule"`
	Count int64  `json:"count"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s (%d rows)", v.Rule, v.Count)
}

// integrityChecks count rows breaking each rule. A zero count passes.
var integrityChecks = []struct {
	rule  string
	query string
}{
	{
		rule:  "prod_reorders <= prod_orders",
		query: `SELECT COUNT(*) FROM product_features WHERE prod_reorders > prod_orders`,
	},
	{
		rule:  "prod_second_orders <= prod_first_orders",
		query: `SELECT COUNT(*) FROM product_features WHERE prod_second_orders > prod_first_orders`,
	},
	{
		rule:  "user_reorder_ratio in [0, 1]",
		query: `SELECT COUNT(*) FROM user_features WHERE user_reorder_ratio < 0 OR user_reorder_ratio > 1`,
	},
	{
		rule: "lookup user exists in orders",
		query: `SELECT COUNT(*) FROM user_product_features f
			WHERE NOT EXISTS (SELECT 1 FROM orders o WHERE o.user_id = f.user_id)`,
	},
	{
		rule: "lookup product exists in products",
		query: `SELECT COUNT(*) FROM user_product_features f
			WHERE NOT EXISTS (SELECT 1 FROM products p WHERE p.product_id = f.product_id)`,
	},
}

// ValidateFeatures runs the integrity checks over the built feature tables
// and returns every rule that failed. An empty result means the build can
// be published.
func (db *DB) ValidateFeatures(ctx context.Context) ([]Violation, error) {
	var violations []Violation
	for _, check := range integrityChecks {
		var n int64
		if err := db.conn.QueryRowContext(ctx, check.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("integrity check %q failed: %w", check.rule, err)
		}
		if n > 0 {
			violations = append(violations, Violation{Rule: check.rule, Count: n})
		}
	}
	return violations, nil
}

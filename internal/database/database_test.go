// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/basketcast/internal/config"
)

// testDBSemaphore limits concurrent DuckDB instances in tests. DuckDB CGO
// calls are memory hungry and parallel packages can exhaust CI runners.
var testDBSemaphore = make(chan struct{}, 2)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

// fixtureCSVs is a two-user order history small enough to check by hand.
//
// User 1 has prior orders 1 and 2 and train order 3.
// User 2 has prior orders 4 and 5 and test order 6.
var fixtureCSVs = map[string]string{
	"orders.csv": `order_id,user_id,eval_set,order_number,order_dow,order_hour_of_day,days_since_prior_order
1,1,prior,1,2,8,
2,1,prior,2,3,7,15.0
3,1,train,3,4,12,21.0
4,2,prior,1,1,9,
5,2,prior,2,5,10,10.0
6,2,test,3,6,11,5.0
`,
	"products.csv": `product_id,product_name,aisle_id,department_id
10,Banana,1,1
20,Whole Milk,2,2
30,"Bread, Sourdough",3,3
`,
	"aisles.csv": `aisle_id,aisle
1,fresh fruits
2,milk
3,bread
`,
	"departments.csv": `department_id,department
1,produce
2,dairy eggs
3,bakery
`,
	"order_products__prior.csv": `order_id,product_id,add_to_cart_order,reordered
1,10,1,0
1,20,2,0
2,10,1,1
2,30,2,0
4,20,1,0
5,20,1,1
5,10,2,0
`,
	"order_products__train.csv": `order_id,product_id,add_to_cart_order,reordered
3,10,1,1
3,30,2,1
`,
}

// writeFixture writes the fixture CSVs into a temp dir and returns it
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range fixtureCSVs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// setupBuiltDB loads the fixture and builds every feature table
func setupBuiltDB(t *testing.T) *DB {
	t.Helper()
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.LoadSources(ctx, DefaultSourceFiles(writeFixture(t))); err != nil {
		t.Fatalf("LoadSources() error = %v", err)
	}
	if _, err := db.BuildFeatures(ctx, BuildOptions{Datasets: true}); err != nil {
		t.Fatalf("BuildFeatures() error = %v", err)
	}
	return db
}

func TestNew_CreatesTables(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"orders", "products", "aisles", "departments", "order_products", "ingested_events"} {
		ok, err := db.TableExists(ctx, table)
		if err != nil {
			t.Fatalf("TableExists(%s) error = %v", table, err)
		}
		if !ok {
			t.Errorf("table %s was not created", table)
		}
	}

	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	path := filepath.Join(t.TempDir(), "nested", "dir", "features.duckdb")
	db, err := New(&config.DatabaseConfig{Path: path, MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/data/orders.csv", "'/data/orders.csv'"},
		{"/data/o'brien.csv", "'/data/o''brien.csv'"},
		{"", "''"},
	}
	for _, tt := range tests {
		if got := quoteLiteral(tt.in); got != tt.want {
			t.Errorf("quoteLiteral(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsTransactionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"conflict", errString("TransactionContext Error: Transaction conflict on insert"), true},
		{"update conflict", errString("Conflict on update!"), true},
		{"other", errString("Catalog Error: table not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransactionConflict(tt.err); got != tt.want {
				t.Errorf("isTransactionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }

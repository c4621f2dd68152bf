// Package testdb provides shared test database helpers backed by in-memory
// SQLite.
package testdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/helixml/ticketsql/internal/database"
)

// New creates an empty in-memory SQLite database that is closed when the
// test finishes.
func New(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:")
	if err != nil {
		t.Fatalf("testdb.New: open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// WithSchema creates an in-memory SQLite database and runs the given
// statements against it, for tests that model a catalog.
func WithSchema(t *testing.T, statements ...string) database.Database {
	t.Helper()
	ctx := context.Background()
	db := New(t)
	for _, stmt := range statements {
		if err := db.Session(ctx).Exec(stmt).Error; err != nil {
			t.Fatalf("testdb.WithSchema: %v\nSQL: %s", err, stmt)
		}
	}
	return db
}

// Orders is a small ticketing catalog used across tests.
func Orders(t *testing.T) database.Database {
	t.Helper()
	return WithSchema(t,
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name VARCHAR(100), status TEXT, created_at TIMESTAMP)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER, status VARCHAR(20), total NUMERIC)`,
		`INSERT INTO customers (id, name, status) VALUES (1, 'Acme', 'active'), (2, 'Globex', 'churned'), (3, 'Initech', 'active')`,
		`INSERT INTO orders (id, customer_id, status, total) VALUES (10, 1, 'shipped', 12.5), (11, 1, 'pending', 3), (12, 2, 'shipped', 8)`,
	)
}

// File creates a SQLite database file in a temporary directory, runs the
// given statements and closes it. It returns the database URL, for tests that
// open the catalog by URL.
func File(t *testing.T, statements ...string) string {
	t.Helper()
	ctx := context.Background()
	url := database.SQLiteURL(filepath.Join(t.TempDir(), "catalog.db"))
	db, err := database.NewDatabase(ctx, url)
	if err != nil {
		t.Fatalf("testdb.File: open database: %v", err)
	}
	defer func() { _ = db.Close() }()
	for _, stmt := range statements {
		if err := db.Session(ctx).Exec(stmt).Error; err != nil {
			t.Fatalf("testdb.File: %v\nSQL: %s", err, stmt)
		}
	}
	return url
}

// Trades is the statements of a small market catalog.
var Trades = []string{
	`CREATE TABLE trades (symbol TEXT, qty NUMERIC, traded_at DATE)`,
	`INSERT INTO trades (symbol, qty, traded_at) VALUES
		('BTC', 1.5, '2024-03-01'),
		('BTC', 2, '2023-11-20'),
		('ETH', 4, '2024-05-12'),
		(NULL, 1, '2024-01-02')`,
}

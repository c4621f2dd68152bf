package database

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn in a transaction that commits when fn returns nil
// and rolls back otherwise, including on panic.
func WithTransaction(ctx context.Context, db Database, fn func(tx *gorm.DB) error) error {
	return db.Session(ctx).Transaction(fn)
}

// WithReadOnly runs fn in a transaction that is always rolled back. On
// PostgreSQL the transaction is also declared READ ONLY, so the server
// refuses writes even when fn attempts them.
func WithReadOnly[T any](ctx context.Context, db Database, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var zero T

	var opts []*sql.TxOptions
	if db.IsPostgres() {
		opts = append(opts, &sql.TxOptions{ReadOnly: true})
	}
	tx := db.Session(ctx).Begin(opts...)
	if tx.Error != nil {
		return zero, fmt.Errorf("begin read-only transaction: %w", tx.Error)
	}
	defer tx.Rollback()

	if db.IsPostgres() {
		if err := tx.Exec("SET TRANSACTION READ ONLY").Error; err != nil {
			return zero, fmt.Errorf("set read only: %w", err)
		}
	}
	return fn(tx)
}

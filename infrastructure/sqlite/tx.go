package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

// WithWriteTx runs fn in an explicit write transaction.
func (db *DB) WithWriteTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil || db.W == nil {
		return fmt.Errorf("write db is not initialized")
	}
	err := db.W.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
	return ClassifyError(err)
}

// WithReadTx runs fn in an explicit read transaction.
func (db *DB) WithReadTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil || db.R == nil {
		return fmt.Errorf("read db is not initialized")
	}
	return db.R.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// WithinWriteScope runs fn inside scope when the caller already holds a write
// transaction, otherwise it opens a new one. Work done through scope commits or
// rolls back with the caller's transaction.
func (db *DB) WithinWriteScope(ctx context.Context, scope bun.IDB, fn func(ctx context.Context, idb bun.IDB) error) error {
	if scope != nil {
		return fn(ctx, scope)
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

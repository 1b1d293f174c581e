package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithStoreRLS executes a function with RLS-based store isolation.
// This is the row-level multi-tenancy mechanism: every store-owned table
// carries a store_id column and a policy of the form
// USING (store_id = current_setting('app.current_store')::uuid).
//
// Usage in repositories:
//
//	storeID, err := storectx.StoreID(ctx)
//	if err != nil { return err }
//	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
//	    return r.db.GetContext(ctx, &profile, "SELECT * FROM profiles WHERE id = $1", id)
//	})
//
// How it works:
//  1. Starts a transaction
//  2. Sets "SET LOCAL app.current_store = '<store-uuid>'"
//  3. RLS policies filter rows automatically
//  4. Commits the transaction (SET LOCAL is scoped to it, so pooled
//     connections hand back clean state)
//
// The policies are enforced by the PostgreSQL engine; application code
// cannot bypass them, and WITH CHECK prevents inserting rows for another
// store. The single PIN lookup path uses a dedicated definer function
// instead of this wrapper (see team repository).
func (db *DB) WithStoreRLS(ctx context.Context, storeID string, fn func(context.Context) error) error {
	// Re-entrant: inside an existing store-scoped transaction the wrapper
	// is a pass-through, so a service can put several repository calls
	// behind one transaction boundary.
	if db.getTx(ctx) != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// SET LOCAL doesn't support parameterized queries; storeID is a
		// UUID validated upstream, never raw user input.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_store = '%s'", storeID)); err != nil {
			return fmt.Errorf("failed to set app.current_store to %s: %w", storeID, err)
		}

		txCtx := context.WithValue(ctx, txKey{}, tx)

		return fn(txCtx)
	})
}

// getTx extracts the transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

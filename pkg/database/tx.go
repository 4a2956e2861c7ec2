package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn in a transaction on the connection held by ctx. The
// context passed to fn routes every repository call through the
// transaction. A nested call opens a savepoint, so an inner failure can be
// rolled back without discarding the outer work.
//
// The transaction commits when fn returns nil and rolls back otherwise.
func WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var beginner txBeginner
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		beginner = tx
	} else {
		scope, ok := GetTenantScope(ctx)
		if !ok || scope.Conn == nil {
			return ErrNoTenantScope
		}
		beginner = scope.Conn
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

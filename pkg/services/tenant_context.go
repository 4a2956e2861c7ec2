package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/precast-engine/pkg/database"
)

// TenantContextFunc acquires a connection scoped to an owning account.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type TenantContextFunc func(ctx context.Context, ownerID uuid.UUID) (context.Context, func(), error)

// NewTenantContextFunc creates a TenantContextFunc that uses the given database.
func NewTenantContextFunc(db *database.DB) TenantContextFunc {
	return func(ctx context.Context, ownerID uuid.UUID) (context.Context, func(), error) {
		scope, err := db.WithTenant(ctx, ownerID)
		if err != nil {
			return nil, nil, err
		}
		tenantCtx := database.SetTenantScope(ctx, scope)
		return tenantCtx, func() { scope.Close() }, nil
	}
}

// TxFunc runs fn as one unit of work. A call nested inside another unit of
// work must be independently revertible (a savepoint).
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTxFunc returns the PostgreSQL implementation of TxFunc.
func NewTxFunc() TxFunc {
	return database.WithTx
}

package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/domain"
)

type InventoryLedger interface {
	// WithLockedRows locks the variants FOR UPDATE in ascending id order, then calls fn.
	// Must run inside a transaction.
	WithLockedRows(ctx context.Context, variantIDs []uuid.UUID, fn func(rows LockedVariants) error) error

	// SetStock is an optimistic write guarded by the variant version.
	SetStock(ctx context.Context, variantID uuid.UUID, stock int, expectedVersion int64) (domain.Variant, error)
}

// LockedVariants is only valid inside the WithLockedRows callback.
type LockedVariants interface {
	Get(variantID uuid.UUID) (domain.Variant, bool)
	Reserve(ctx context.Context, variantID uuid.UUID, quantity int) error
}

package port

import (
	"context"

	"github.com/nikolayk812/footy/internal/domain"
)

// CartModifier maps the current snapshot to the next one. It may be called several times.
type CartModifier func(cart domain.Cart, exists bool) (domain.Cart, error)

// CartMerger combines a source cart into a destination cart.
type CartMerger func(src domain.Cart, srcExists bool, dst domain.Cart, dstExists bool) (domain.Cart, error)

type CartStore interface {
	Get(ctx context.Context, ownerID string) (domain.Cart, bool, error)
	Update(ctx context.Context, ownerID string, fn CartModifier) (domain.Cart, error)
	Transfer(ctx context.Context, fromOwnerID, toOwnerID string, fn CartMerger) (domain.Cart, error)
	Delete(ctx context.Context, ownerID string) error
}

package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/domain"
)

// CatalogReader resolves current product and variant data.
type CatalogReader interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error)
	GetProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]domain.Product, error)
	GetVariant(ctx context.Context, variantID uuid.UUID) (domain.Variant, error)
	GetVariants(ctx context.Context, variantIDs []uuid.UUID) (map[uuid.UUID]domain.Variant, error)
}

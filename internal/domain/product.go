package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID     uuid.UUID
	Name   string
	Images []string
	Price  decimal.Decimal
	Active bool

	DeletedAt *time.Time
}

// Purchasable reports whether the product can still be added to a cart or ordered.
func (p Product) Purchasable() bool {
	return p.Active && p.DeletedAt == nil
}

// Image returns the first product image, or "" when there is none.
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Variant is a purchasable size of a product and the unit stock is tracked against.
type Variant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Size      string
	Stock     int
	Version   int64

	UpdatedAt time.Time
}

package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrCartNotFound           = fmt.Errorf("cart %w", ErrNotFound)
	ErrCartItemNotFound       = fmt.Errorf("cart item %w", ErrNotFound)
	ErrCartEmpty              = errors.New("cart is empty")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrConcurrentModification = errors.New("concurrent modification, retry")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTokenExpired    = fmt.Errorf("token expired: %w", ErrUnauthenticated)
)

type InsufficientStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

type PriceChangedError struct {
	ProductName  string
	CartPrice    decimal.Decimal
	CurrentPrice decimal.Decimal
}

func (e *PriceChangedError) Error() string {
	return fmt.Sprintf("price for %s has changed from %s to %s", e.ProductName, e.CartPrice.StringFixed(2), e.CurrentPrice.StringFixed(2))
}

type InvalidStateTransitionError struct {
	Current OrderStatus
	Target  OrderStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.Current, e.Target)
}

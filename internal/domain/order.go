package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Order is written once at checkout, afterwards only Status changes.
type Order struct {
	ID              uuid.UUID
	Number          string
	IdempotencyKey  string
	UserID          uuid.UUID
	SessionID       string
	Status          OrderStatus
	Currency        currency.Unit
	Subtotal        decimal.Decimal
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress ShippingAddress
	Notes           *string
	Items           []OrderItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is a point-in-time copy of the product, it is not joined back to the catalog.
type OrderItem struct {
	ID           uuid.UUID
	ProductID    *uuid.UUID
	VariantID    *uuid.UUID
	ProductName  string
	ProductImage *string
	Size         string
	Quantity     int
	UnitPrice    decimal.Decimal

	CreatedAt time.Time
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingAddress struct {
	Name       string  `json:"name" validate:"required,max=255"`
	Line1      string  `json:"line1" validate:"required,max=255"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=255"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	PostalCode string  `json:"postalCode" validate:"required,max=20"`
	Country    string  `json:"country" validate:"required,max=100"`
	Phone      string  `json:"phone" validate:"required,max=50"`
}

// OrderPage is one page of a paginated order listing.
type OrderPage struct {
	Items    []Order
	Total    int
	Page     int
	PageSize int
	Pages    int
}

func NewOrderPage(items []Order, total, page, pageSize int) OrderPage {
	pages := 1
	if total > 0 && pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}

	return OrderPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}
}

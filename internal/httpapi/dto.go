package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/cart"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/samber/lo"
)

type addItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	VariantID uuid.UUID `json:"variantId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=1,max=99"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

type createOrderRequest struct {
	IdempotencyKey  string                 `json:"idempotencyKey" validate:"omitempty,max=255"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	Notes           *string                `json:"notes" validate:"omitempty,max=1000"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type setStockRequest struct {
	Stock   int   `json:"stock" validate:"min=0"`
	Version int64 `json:"version" validate:"min=1"`
}

type cartLineResponse struct {
	ID           uuid.UUID `json:"id"`
	ProductID    uuid.UUID `json:"productId"`
	VariantID    uuid.UUID `json:"variantId"`
	ProductName  string    `json:"productName"`
	Image        string    `json:"image,omitempty"`
	Size         string    `json:"size"`
	Quantity     int       `json:"quantity"`
	UnitPrice    string    `json:"unitPrice"`
	CurrentPrice string    `json:"currentPrice"`
	PriceChanged bool      `json:"priceChanged"`
	InStock      int       `json:"inStock"`
	Subtotal     string    `json:"subtotal"`
}

type cartResponse struct {
	Lines     []cartLineResponse `json:"lines"`
	Total     string             `json:"total"`
	ItemCount int                `json:"itemCount"`
}

func toCartResponse(v cart.View) cartResponse {
	return cartResponse{
		Lines: lo.Map(v.Lines, func(l cart.LineView, _ int) cartLineResponse {
			return cartLineResponse{
				ID:           l.ID,
				ProductID:    l.ProductID,
				VariantID:    l.VariantID,
				ProductName:  l.ProductName,
				Image:        l.Image,
				Size:         l.Size,
				Quantity:     l.Quantity,
				UnitPrice:    l.UnitPrice.StringFixed(2),
				CurrentPrice: l.CurrentPrice.StringFixed(2),
				PriceChanged: l.PriceChanged(),
				InStock:      l.InStock,
				Subtotal:     l.Subtotal.StringFixed(2),
			}
		}),
		Total:     v.Total.StringFixed(2),
		ItemCount: v.ItemCount,
	}
}

type orderItemResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    *uuid.UUID `json:"productId"`
	VariantID    *uuid.UUID `json:"variantId"`
	ProductName  string     `json:"productName"`
	ProductImage *string    `json:"productImage,omitempty"`
	Size         string     `json:"size"`
	Quantity     int        `json:"quantity"`
	UnitPrice    string     `json:"unitPrice"`
	Subtotal     string     `json:"subtotal"`
}

type orderResponse struct {
	ID              uuid.UUID              `json:"id"`
	Number          string                 `json:"number"`
	Status          domain.OrderStatus     `json:"status"`
	Terminal        bool                   `json:"terminal"`
	NextStatuses    []domain.OrderStatus   `json:"allowedTransitions"`
	Currency        string                 `json:"currency"`
	Subtotal        string                 `json:"subtotal"`
	ShippingCost    string                 `json:"shippingCost"`
	Tax             string                 `json:"tax"`
	Total           string                 `json:"total"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	Notes           *string                `json:"notes,omitempty"`
	Items           []orderItemResponse    `json:"items"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		Number:          o.Number,
		Status:          o.Status,
		Terminal:        o.Status.IsTerminal(),
		NextStatuses:    o.Status.AllowedTransitions(),
		Currency:        o.Currency.String(),
		Subtotal:        o.Subtotal.StringFixed(2),
		ShippingCost:    o.ShippingCost.StringFixed(2),
		Tax:             o.Tax.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		Items: lo.Map(o.Items, func(i domain.OrderItem, _ int) orderItemResponse {
			return orderItemResponse{
				ID:           i.ID,
				ProductID:    i.ProductID,
				VariantID:    i.VariantID,
				ProductName:  i.ProductName,
				ProductImage: i.ProductImage,
				Size:         i.Size,
				Quantity:     i.Quantity,
				UnitPrice:    i.UnitPrice.StringFixed(2),
				Subtotal:     i.Subtotal().StringFixed(2),
			}
		}),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

type orderPageResponse struct {
	Items    []orderResponse `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Pages    int             `json:"pages"`
}

func toOrderPageResponse(p domain.OrderPage) orderPageResponse {
	return orderPageResponse{
		Items:    lo.Map(p.Items, func(o domain.Order, _ int) orderResponse { return toOrderResponse(o) }),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Pages:    p.Pages,
	}
}

type variantResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Size      string    `json:"size"`
	Stock     int       `json:"stock"`
	Version   int64     `json:"version"`
}

package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/domain"
)

type OrderRepository interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (domain.Order, error)

	SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error)

	OrderNumberExists(ctx context.Context, number string) (bool, error)
	InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) error
}

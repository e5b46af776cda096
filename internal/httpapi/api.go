// Package httpapi exposes cart, checkout and order administration over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/cart"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/metrics"
	"github.com/nikolayk812/footy/internal/order"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type CartService interface {
	GetCart(ctx context.Context, ownerID string) (cart.View, error)
	AddItem(ctx context.Context, ownerID string, productID, variantID uuid.UUID, quantity int) (cart.View, error)
	UpdateItem(ctx context.Context, ownerID string, variantID uuid.UUID, quantity int) (cart.View, error)
	RemoveItem(ctx context.Context, ownerID string, variantID uuid.UUID) (cart.View, error)
	ClearCart(ctx context.Context, ownerID string) error
	MergeCarts(ctx context.Context, anonymousID, userID string) (cart.View, error)
	RefreshPrices(ctx context.Context, ownerID string) (cart.View, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, p order.Params) (domain.Order, error)
	GetOrder(ctx context.Context, orderID, userID uuid.UUID) (domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string, userID uuid.UUID) (domain.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, page, pageSize int) (domain.OrderPage, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) (domain.OrderPage, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, target domain.OrderStatus) (domain.Order, error)
	SetStock(ctx context.Context, variantID uuid.UUID, stock int, expectedVersion int64) (domain.Variant, error)
}

type Config struct {
	Log      logrus.FieldLogger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Carts    CartService
	Orders   OrderService
	Sessions *scs.SessionManager
	Identity Identity

	RequestTimeout time.Duration
	AdminToken     string
}

// NewRouter wires middleware and routes. Gatherer is optional, /metrics is only mounted with it.
// Without Sessions, session data is kept in process memory.
func NewRouter(cfg Config) http.Handler {
	if cfg.Sessions == nil {
		cfg.Sessions = scs.New()
	}

	carts := &cartHandler{carts: cfg.Carts, log: cfg.Log}
	orders := &orderHandler{orders: cfg.Orders, log: cfg.Log}
	sessions := &sessionHandler{sessions: cfg.Sessions, carts: cfg.Carts, log: cfg.Log}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(cfg.Log))
	if cfg.Metrics != nil {
		r.Use(instrument(cfg.Metrics))
	}
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, cfg.Log, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.Sessions.LoadAndSave)
		r.Use(session(cfg.Sessions))
		r.Use(identify(cfg.Sessions, cfg.Identity, cfg.Log))

		r.With(requireUser(cfg.Log)).Post("/session", sessions.login)
		r.Delete("/session", sessions.logout)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.getCart)
			r.Delete("/", carts.clearCart)
			r.Post("/items", carts.addItem)
			r.Put("/items/{variantID}", carts.updateItem)
			r.Delete("/items/{variantID}", carts.removeItem)
			r.Post("/refresh-prices", carts.refreshPrices)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(requireUser(cfg.Log))

			r.Post("/", orders.createOrder)
			r.Get("/", orders.listOrders)
			r.Get("/{orderID}", orders.getOrder)
			r.Get("/number/{number}", orders.getOrderByNumber)
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(requireAdmin(cfg.AdminToken, cfg.Log))

		r.Get("/orders", orders.adminListOrders)
		r.Patch("/orders/{orderID}/status", orders.updateStatus)
		r.Put("/variants/{variantID}/stock", orders.setStock)
	})

	return r
}

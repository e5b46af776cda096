package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/order"
	"github.com/sirupsen/logrus"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"

	defaultPageSize = 20
)

type orderHandler struct {
	orders OrderService
	log    logrus.FieldLogger
}

// POST /api/v1/orders
// The idempotency key comes from the Idempotency-Key header, or the body when the header is absent.
func (h *orderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userID(ctx)

	var req createOrderRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	if key == "" {
		respondError(w, r, h.log, badRequest(errors.New("idempotency key is required")))
		return
	}

	o, err := h.orders.CreateOrder(ctx, order.Params{
		UserID:          user,
		SessionID:       sessionID(ctx),
		CartOwner:       cartOwner(ctx),
		IdempotencyKey:  key,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusCreated, toOrderResponse(o))
}

// GET /api/v1/orders?page=1&pageSize=20
func (h *orderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userID(ctx)

	filter, err := pageFilter(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	page, err := h.orders.ListUserOrders(ctx, user, filter.Page, filter.PageSize)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toOrderPageResponse(page))
}

// GET /api/v1/orders/{orderID}
func (h *orderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userID(ctx)

	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	o, err := h.orders.GetOrder(ctx, orderID, user)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toOrderResponse(o))
}

// GET /api/v1/orders/number/{number}
func (h *orderHandler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userID(ctx)

	o, err := h.orders.GetOrderByNumber(ctx, chi.URLParam(r, "number"), user)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toOrderResponse(o))
}

// GET /api/v1/admin/orders?status=pending&status=confirmed&q=FT-2026&userId=...&createdAfter=...&createdBefore=...
func (h *orderHandler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := adminFilter(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	page, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toOrderPageResponse(page))
}

// PATCH /api/v1/admin/orders/{orderID}/status
func (h *orderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req updateStatusRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	target, err := domain.ToOrderStatus(req.Status)
	if err != nil {
		respondError(w, r, h.log, badRequest(fmt.Errorf("status[%s]: %w", req.Status, err)))
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), orderID, target)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toOrderResponse(o))
}

// PUT /api/v1/admin/variants/{variantID}/stock
func (h *orderHandler) setStock(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuidParam(r, "variantID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req setStockRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	v, err := h.orders.SetStock(r.Context(), variantID, req.Stock, req.Version)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, variantResponse{
		ID:        v.ID,
		ProductID: v.ProductID,
		Size:      v.Size,
		Stock:     v.Stock,
		Version:   v.Version,
	})
}

func pageFilter(r *http.Request) (domain.OrderFilter, error) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		return domain.OrderFilter{}, err
	}

	pageSize, err := intQuery(r, "pageSize", defaultPageSize)
	if err != nil {
		return domain.OrderFilter{}, err
	}

	filter := domain.OrderFilter{Page: page, PageSize: pageSize}
	if err := filter.Validate(); err != nil {
		return domain.OrderFilter{}, badRequest(err)
	}

	return filter, nil
}

func adminFilter(r *http.Request) (domain.OrderFilter, error) {
	filter, err := pageFilter(r)
	if err != nil {
		return filter, err
	}

	q := r.URL.Query()

	for _, s := range q["status"] {
		status, err := domain.ToOrderStatus(s)
		if err != nil {
			return filter, badRequest(fmt.Errorf("status[%s]: %w", s, err))
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	filter.NumberSearch = strings.TrimSpace(q.Get("q"))

	if raw := q.Get("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, badRequest(errors.New("userId is not a valid id"))
		}
		filter.UserID = &id
	}

	after, err := timeQuery(r, "createdAfter")
	if err != nil {
		return filter, err
	}
	before, err := timeQuery(r, "createdBefore")
	if err != nil {
		return filter, err
	}
	if after != nil || before != nil {
		filter.CreatedAt = &domain.TimeRange{After: after, Before: before}
	}

	if err := filter.Validate(); err != nil {
		return filter, badRequest(err)
	}

	return filter, nil
}

func timeQuery(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, badRequest(fmt.Errorf("%s must be RFC3339", name))
	}
	return &t, nil
}

package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// requestError marks malformed or invalid client input.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// errorStatus maps the domain error taxonomy to a status and response body.
func errorStatus(err error) (int, errorResponse) {
	var (
		reqErr        *requestError
		stockErr      *domain.InsufficientStockError
		priceErr      *domain.PriceChangedError
		transitionErr *domain.InvalidStateTransitionError
	)

	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: reqErr.Error()}

	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, errorResponse{Error: "token_expired", Message: "the token has expired"}

	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "authentication required"}

	case errors.Is(err, errForbidden):
		return http.StatusForbidden, errorResponse{Error: "forbidden", Message: "admin token required"}

	case errors.Is(err, domain.ErrCartEmpty):
		return http.StatusBadRequest, errorResponse{Error: "cart_empty", Message: domain.ErrCartEmpty.Error()}

	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, errorResponse{Error: "invalid_quantity", Message: domain.ErrInvalidQuantity.Error()}

	case errors.As(err, &stockErr):
		return http.StatusBadRequest, errorResponse{
			Error:   "insufficient_stock",
			Message: stockErr.Error(),
			Details: map[string]any{
				"productName": stockErr.ProductName,
				"requested":   stockErr.Requested,
				"available":   stockErr.Available,
			},
		}

	case errors.As(err, &transitionErr):
		return http.StatusBadRequest, errorResponse{
			Error:   "invalid_state_transition",
			Message: transitionErr.Error(),
			Details: map[string]any{
				"current": transitionErr.Current,
				"target":  transitionErr.Target,
			},
		}

	case errors.As(err, &priceErr):
		return http.StatusConflict, errorResponse{
			Error:   "price_changed",
			Message: priceErr.Error(),
			Details: map[string]any{
				"productName":  priceErr.ProductName,
				"cartPrice":    priceErr.CartPrice.StringFixed(2),
				"currentPrice": priceErr.CurrentPrice.StringFixed(2),
			},
		}

	case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, context.DeadlineExceeded):
		return http.StatusConflict, errorResponse{
			Error:     "concurrent_modification",
			Message:   domain.ErrConcurrentModification.Error(),
			Retryable: true,
		}

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: "the resource could not be found"}
	}

	return http.StatusInternalServerError, errorResponse{Error: "internal", Message: http.StatusText(http.StatusInternalServerError)}
}

func respondError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	status, body := errorStatus(err)

	entry := log.WithError(err).WithFields(logrus.Fields{
		"req_id": middleware.GetReqID(r.Context()),
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	respondJSON(w, log, status, body)
}

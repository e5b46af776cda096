package httpapi

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

type cartHandler struct {
	carts CartService
	log   logrus.FieldLogger
}

// GET /api/v1/cart
func (h *cartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.GetCart(r.Context(), cartOwner(r.Context()))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toCartResponse(view))
}

// POST /api/v1/cart/items
func (h *cartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	view, err := h.carts.AddItem(r.Context(), cartOwner(r.Context()), req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusCreated, toCartResponse(view))
}

// PUT /api/v1/cart/items/{variantID}, quantity 0 removes the line
func (h *cartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuidParam(r, "variantID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	var req updateItemRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	view, err := h.carts.UpdateItem(r.Context(), cartOwner(r.Context()), variantID, req.Quantity)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toCartResponse(view))
}

// DELETE /api/v1/cart/items/{variantID}
func (h *cartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuidParam(r, "variantID")
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	view, err := h.carts.RemoveItem(r.Context(), cartOwner(r.Context()), variantID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toCartResponse(view))
}

// DELETE /api/v1/cart
func (h *cartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.ClearCart(r.Context(), cartOwner(r.Context())); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusNoContent, nil)
}

// POST /api/v1/cart/refresh-prices
func (h *cartHandler) refreshPrices(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.RefreshPrices(r.Context(), cartOwner(r.Context()))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toCartResponse(view))
}

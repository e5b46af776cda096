package httpapi

import (
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/sirupsen/logrus"
)

type sessionHandler struct {
	sessions *scs.SessionManager
	carts    CartService
	log      logrus.FieldLogger
}

// POST /api/v1/session
// Binds the verified bearer user to the session and merges the anonymous cart into the user cart.
func (h *sessionHandler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userID(ctx)

	if err := h.sessions.RenewToken(ctx); err != nil {
		respondError(w, r, h.log, fmt.Errorf("sessions.RenewToken: %w", err))
		return
	}
	h.sessions.Put(ctx, sessionUserIDKey, user.String())

	view, err := h.carts.MergeCarts(ctx, sessionCartKey(sessionID(ctx)), userCartKey(user))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	h.log.WithField("user_id", user).Info("session logged in")

	respondJSON(w, h.log, http.StatusOK, toCartResponse(view))
}

// DELETE /api/v1/session
func (h *sessionHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context()); err != nil {
		respondError(w, r, h.log, fmt.Errorf("sessions.Destroy: %w", err))
		return
	}

	respondJSON(w, h.log, http.StatusNoContent, nil)
}

package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/metrics"
	"github.com/sirupsen/logrus"
)

const (
	AdminTokenHeader = "X-Admin-Token"

	sessionCartIDKey = "cart_session_id"
	sessionUserIDKey = "user_id"
)

var errForbidden = errors.New("forbidden")

// Identity resolves a bearer credential to a user id.
type Identity interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

type ctxKey int

const (
	sessionKey ctxKey = iota + 1
	userKey
)

func sessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}

func userID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userKey).(uuid.UUID)
	return id, ok
}

// cartOwner is the user key once authenticated, the session key before.
func cartOwner(ctx context.Context) string {
	if id, ok := userID(ctx); ok {
		return userCartKey(id)
	}
	return sessionCartKey(sessionID(ctx))
}

func userCartKey(id uuid.UUID) string {
	return "user:" + id.String()
}

func sessionCartKey(id string) string {
	return "session:" + id
}

// session assigns the anonymous cart id stored in the session, creating it on first use.
// Must run inside sm.LoadAndSave.
func session(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id := sm.GetString(ctx, sessionCartIDKey)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
				sm.Put(ctx, sessionCartIDKey, id)
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, id)))
		})
	}
}

// identify takes the user from the session after login, or from a verified bearer token.
// Anonymous requests pass through.
func identify(sm *scs.SessionManager, identity Identity, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			if header == "" {
				if id, err := uuid.Parse(sm.GetString(ctx, sessionUserIDKey)); err == nil {
					ctx = context.WithValue(ctx, userKey, id)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			id, err := bearerUser(ctx, identity, header)
			if err != nil {
				respondError(w, r, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userKey, id)))
		})
	}
}

func bearerUser(ctx context.Context, identity Identity, header string) (uuid.UUID, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || identity == nil {
		return uuid.Nil, domain.ErrUnauthenticated
	}

	id, err := identity.Authenticate(ctx, strings.TrimSpace(token))
	if err != nil {
		return uuid.Nil, fmt.Errorf("identity.Authenticate: %w", err)
	}

	return id, nil
}

func requireUser(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := userID(r.Context()); !ok {
				respondError(w, r, log, domain.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAdmin rejects everything when no admin token is configured.
func requireAdmin(token string, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				respondError(w, r, log, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessLog(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"req_id":      middleware.GetReqID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request completed")
		})
	}
}

// instrument labels by route pattern, unmatched requests share one label.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}

package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-commerce/meridian/internal/platform/httpx"
	"github.com/meridian-commerce/meridian/internal/shared"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireRole ensures the current user holds one of the given roles.
// Requests without an authenticated session are rejected with 401.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[Role(strings.ToUpper(string(role)))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.currentUserID(r)
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			user, err := m.Service.UserByID(r.Context(), userID)
			if err != nil {
				// A session pointing at a missing or disabled account is
				// treated the same as no session at all.
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if len(allowed) > 0 {
				if _, ok := allowed[user.Role]; !ok {
					httpx.RespondError(w, httpx.ErrUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("auth parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

// CurrentUserID extracts the authenticated user ID from the request session.
func CurrentUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

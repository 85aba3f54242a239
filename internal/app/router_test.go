package app_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian/internal/app"
	"github.com/meridian-commerce/meridian/internal/auth"
	"github.com/meridian-commerce/meridian/internal/orders"
	"github.com/meridian-commerce/meridian/internal/shared"
	"github.com/meridian-commerce/meridian/internal/warehouse"
	_ "github.com/meridian-commerce/meridian/testing"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	authmw := auth.Middleware{Service: auth.NewService(nil)}

	return app.NewRouter(app.RouterParams{
		Logger:           slog.Default(),
		Config:           &app.Config{},
		SessionManager:   sessions,
		AuthHandler:      auth.NewHandler(nil, auth.NewService(nil), sessions),
		WarehouseHandler: warehouse.NewHandler(nil, nil, authmw),
		OrdersHandler:    orders.NewHandler(nil, nil, authmw, nil),
	})
}

// Pins the externally documented paths: a registered route rejects an
// unauthenticated request with 401, while an unregistered path 404s.
func TestRouterMountsDocumentedPaths(t *testing.T) {
	router := newTestRouter(t)

	registered := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/orders/1"},
		{http.MethodPost, "/api/orders/1/reserve-stock"},
		{http.MethodPost, "/api/orders/1/release-stock"},
		{http.MethodPost, "/api/orders/1/commit-stock"},
		{http.MethodGet, "/api/warehouse/overview"},
		{http.MethodGet, "/api/warehouse/docs/1"},
		{http.MethodPost, "/api/inventory/reorder"},
		{http.MethodPatch, "/api/warehouses/1"},
	}
	for _, tc := range registered {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equalf(t, http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/orders/orders/1/release-stock", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code, "order routes must not be double-prefixed")
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

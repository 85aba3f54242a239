package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-commerce/meridian/internal/auth"
	"github.com/meridian-commerce/meridian/internal/observability"
	"github.com/meridian-commerce/meridian/internal/platform/httpx"
	"github.com/meridian-commerce/meridian/internal/shared"
	"github.com/meridian-commerce/meridian/internal/warehouse"
)

// Handler exposes the order lifecycle over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
	metrics *observability.Metrics
}

func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, auth: authmw, metrics: metrics}
}

// MountRoutes registers order routes under the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRole(auth.RoleAdmin, auth.RoleEditor, auth.RoleViewer))
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRole(auth.RoleAdmin, auth.RoleEditor))
		r.Post("/{id}/reserve-stock", h.handleReserve)
		r.Post("/{id}/release-stock", h.handleRelease)
		r.Post("/{id}/commit-stock", h.handleCommit)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// stockActionResponse is the wire shape shared by the three stock endpoints.
type stockActionResponse struct {
	Message string                      `json:"message"`
	Applied []warehouse.StockActionItem `json:"applied"`
	Skipped []warehouse.SkippedItem     `json:"skipped"`
	Errors  []string                    `json:"errors,omitempty"`
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.handleStockAction(w, r, warehouse.ActionReserve, "stock reserved", h.service.Confirm)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.handleStockAction(w, r, warehouse.ActionRelease, "stock released", h.service.Cancel)
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	h.handleStockAction(w, r, warehouse.ActionCommit, "stock committed", h.service.Ship)
}

func (h *Handler) handleStockAction(w http.ResponseWriter, r *http.Request, action warehouse.StockActionKind, message string, fn func(ctx context.Context, orderID, actorID int64) (warehouse.StockActionResult, error)) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	result, err := fn(r.Context(), id, auth.CurrentUserID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.metrics.ObserveStockAction(string(action), len(result.Skipped))
	if !result.Success {
		message += " with skipped items"
	}
	httpx.JSON(w, http.StatusOK, stockActionResponse{
		Message: message,
		Applied: emptyIfNil(result.Applied),
		Skipped: emptyIfNilSkipped(result.Skipped),
		Errors:  result.Errors,
	})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.ValidationProblem(w, map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, warehouse.ErrWarehouseNotFound):
		httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "state conflict", err.Error())
	case errors.Is(err, ErrNoItems), errors.Is(err, warehouse.ErrInvalidAction), errors.Is(err, warehouse.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
	default:
		h.logger.Error("order request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
	}
}

func emptyIfNil(items []warehouse.StockActionItem) []warehouse.StockActionItem {
	if items == nil {
		return []warehouse.StockActionItem{}
	}
	return items
}

func emptyIfNilSkipped(items []warehouse.SkippedItem) []warehouse.SkippedItem {
	if items == nil {
		return []warehouse.SkippedItem{}
	}
	return items
}

package warehouse

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-commerce/meridian/internal/auth"
	"github.com/meridian-commerce/meridian/internal/platform/httpx"
	"github.com/meridian-commerce/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the warehouse module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	auth      auth.Middleware
}

// NewHandler constructs the warehouse handler.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), auth: authmw}
}

// MountRoutes registers inventory and warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRole(auth.RoleAdmin, auth.RoleEditor, auth.RoleViewer))
		r.Get("/inventory", h.handleListItems)
		r.Get("/warehouse/overview", h.handleOverview)
		r.Get("/warehouse/docs/{id}", h.handleGetDocument)
		r.Get("/warehouses", h.handleListWarehouses)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRole(auth.RoleAdmin, auth.RoleEditor))
		r.Post("/warehouse/docs", h.handleCreateDocument)
		r.Post("/warehouse/docs/{id}/post", h.handlePostDocument)
		r.Post("/warehouses", h.handleCreateWarehouse)
		r.Patch("/warehouses/{id}", h.handleUpdateWarehouse)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRole(auth.RoleAdmin))
		r.Post("/inventory/reorder", h.handleReorder)
	})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ItemFilter{
		LowOnly: q.Get("low") == "true",
	}
	filter.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}

	items, total, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

type documentResponse struct {
	StockDocument
	Movements []StockMovement `json:"movements"`
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.ValidationProblem(w, map[string]string{"id": "must be a positive integer"})
		return
	}
	doc, movements, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, documentResponse{StockDocument: doc, Movements: movements})
}

type documentLineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	ProductName string  `json:"product_name"`
	Qty         float64 `json:"qty" validate:"required"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
}

type createDocumentRequest struct {
	DocNumber         string                `json:"doc_number"`
	Type              string                `json:"type" validate:"required,oneof=RECEIPT ISSUE ADJUSTMENT TRANSFER"`
	WarehouseID       int64                 `json:"warehouse_id" validate:"required,gt=0"`
	TargetWarehouseID int64                 `json:"target_warehouse_id"`
	Note              string                `json:"note"`
	Lines             []documentLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if details, ok := h.validate(req); !ok {
		httpx.ValidationProblem(w, details)
		return
	}

	input := CreateDocumentInput{
		DocNumber:         req.DocNumber,
		Type:              DocumentType(req.Type),
		WarehouseID:       req.WarehouseID,
		TargetWarehouseID: req.TargetWarehouseID,
		Note:              req.Note,
		ActorID:           auth.CurrentUserID(r),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, DocumentLineInput{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Qty:         line.Qty,
			UnitCost:    line.UnitCost,
		})
	}

	doc, err := h.service.CreateDocument(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) handlePostDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.ValidationProblem(w, map[string]string{"id": "must be a positive integer"})
		return
	}
	doc, err := h.service.PostDocument(r.Context(), id, auth.CurrentUserID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouses": warehouses})
}

type createWarehouseRequest struct {
	Code      string `json:"code" validate:"required,max=20"`
	Name      string `json:"name" validate:"required,max=100"`
	Address   string `json:"address"`
	IsDefault bool   `json:"is_default"`
}

func (h *Handler) handleCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req createWarehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if details, ok := h.validate(req); !ok {
		httpx.ValidationProblem(w, details)
		return
	}
	created, err := h.service.CreateWarehouse(r.Context(), Warehouse{
		Code:      req.Code,
		Name:      req.Name,
		Address:   req.Address,
		IsDefault: req.IsDefault,
	}, auth.CurrentUserID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type updateWarehouseRequest struct {
	Name      *string `json:"name"`
	Address   *string `json:"address"`
	IsDefault *bool   `json:"is_default"`
}

func (h *Handler) handleUpdateWarehouse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.ValidationProblem(w, map[string]string{"id": "must be a positive integer"})
		return
	}
	var req updateWarehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Name == nil && req.Address == nil && req.IsDefault == nil {
		httpx.ValidationProblem(w, map[string]string{"_": "no fields to update"})
		return
	}
	updated, err := h.service.UpdateWarehouse(r.Context(), id, WarehouseUpdate{
		Name:    req.Name,
		Address: req.Address,
		Default: req.IsDefault,
	}, auth.CurrentUserID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

type reorderItemRequest struct {
	InventoryItemID int64   `json:"inventoryItemId" validate:"required,gt=0"`
	ReorderPointQty float64 `json:"reorderPointQty" validate:"gte=0"`
	ReorderQty      float64 `json:"reorderQty" validate:"gte=0"`
}

type reorderRequest struct {
	Items []reorderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if details, ok := h.validate(req); !ok {
		httpx.ValidationProblem(w, details)
		return
	}
	inputs := make([]ReorderLevelInput, 0, len(req.Items))
	for _, item := range req.Items {
		inputs = append(inputs, ReorderLevelInput{
			InventoryItemID: item.InventoryItemID,
			ReorderPointQty: item.ReorderPointQty,
			ReorderQty:      item.ReorderQty,
		})
	}
	if err := h.service.UpdateReorderLevels(r.Context(), inputs, auth.CurrentUserID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) validate(value any) (map[string]string, bool) {
	err := h.validator.Struct(value)
	if err == nil {
		return nil, true
	}
	details := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	} else {
		details["_"] = err.Error()
	}
	return details, false
}

// respondError translates domain errors to the API error contract.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrWarehouseNotFound), errors.Is(err, ErrDocumentNotFound):
		httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, ErrDocumentNotDraft):
		httpx.Problem(w, http.StatusConflict, "state conflict", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "state conflict", err.Error())
	case errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "negative stock", err.Error())
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidUnitCost),
		errors.Is(err, ErrSameWarehouse),
		errors.Is(err, ErrNoLines),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrCannotUnsetDefault):
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
	default:
		h.logger.Error("warehouse request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
	}
}

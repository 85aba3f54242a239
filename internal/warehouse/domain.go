package warehouse

import (
	"errors"
	"time"
)

// StockActionKind enumerates order-driven ledger actions.
type StockActionKind string

const (
	// ActionReserve allocates available stock to an order.
	ActionReserve StockActionKind = "RESERVE"
	// ActionRelease returns reserved stock on cancellation.
	ActionRelease StockActionKind = "RELEASE"
	// ActionCommit consumes reserved stock on shipment.
	ActionCommit StockActionKind = "COMMIT"
)

// IsValid reports whether the action kind is known.
func (k StockActionKind) IsValid() bool {
	switch k {
	case ActionReserve, ActionRelease, ActionCommit:
		return true
	default:
		return false
	}
}

// DocumentType enumerates manually authored stock transactions.
type DocumentType string

const (
	DocumentReceipt    DocumentType = "RECEIPT"
	DocumentIssue      DocumentType = "ISSUE"
	DocumentAdjustment DocumentType = "ADJUSTMENT"
	DocumentTransfer   DocumentType = "TRANSFER"
)

// IsValid reports whether the document type is known.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentReceipt, DocumentIssue, DocumentAdjustment, DocumentTransfer:
		return true
	default:
		return false
	}
}

// DocumentStatus models the document lifecycle. Posted documents are immutable.
type DocumentStatus string

const (
	DocumentDraft  DocumentStatus = "DRAFT"
	DocumentPosted DocumentStatus = "POSTED"
)

// Warehouse represents a physical stock location. At most one warehouse
// carries the default flag at any time.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InventoryItem is the ledger row for a (product, warehouse) pair.
// AvailableQty is always OnHandQty - ReservedQty; quantities are never
// stored negative.
type InventoryItem struct {
	ID              int64     `json:"id"`
	ProductID       int64     `json:"product_id"`
	WarehouseID     int64     `json:"warehouse_id"`
	OnHandQty       float64   `json:"on_hand_qty"`
	ReservedQty     float64   `json:"reserved_qty"`
	AvailableQty    float64   `json:"available_qty"`
	ReorderPointQty float64   `json:"reorder_point_qty"`
	ReorderQty      float64   `json:"reorder_qty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StockMovement is an immutable audit record of a single ledger delta.
type StockMovement struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	QtyDelta    float64   `json:"qty_delta"`
	Reason      string    `json:"reason"`
	RefType     string    `json:"ref_type"`
	RefID       int64     `json:"ref_id"`
	Note        string    `json:"note,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Movement reference types.
const (
	RefOrder    = "ORDER"
	RefDocument = "DOCUMENT"
)

// StockDocument is the header of a manually created stock transaction.
type StockDocument struct {
	ID                int64               `json:"id"`
	DocNumber         string              `json:"doc_number"`
	Type              DocumentType        `json:"type"`
	Status            DocumentStatus      `json:"status"`
	WarehouseID       int64               `json:"warehouse_id"`
	TargetWarehouseID int64               `json:"target_warehouse_id,omitempty"`
	Note              string              `json:"note,omitempty"`
	CreatedBy         int64               `json:"created_by"`
	PostedBy          int64               `json:"posted_by,omitempty"`
	PostedAt          *time.Time          `json:"posted_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	Lines             []StockDocumentLine `json:"lines"`
}

// StockDocumentLine is one product delta within a document.
type StockDocumentLine struct {
	ID          int64   `json:"id"`
	DocumentID  int64   `json:"document_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Qty         float64 `json:"qty"`
	UnitCost    float64 `json:"unit_cost"`
}

// StockActionItem is one order line submitted to the executor.
type StockActionItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Qty         float64 `json:"qty"`
}

// SkippedItem is an item the executor could not apply, with the reason.
type SkippedItem struct {
	StockActionItem
	Reason string `json:"reason"`
}

// StockActionInput describes one executor invocation.
type StockActionInput struct {
	OrderID     int64
	OrderNumber string
	Action      StockActionKind
	WarehouseID int64
	Items       []StockActionItem
	ActorID     int64
}

// StockActionResult reports per-item outcomes. Success is true only when
// every item was applied; callers must inspect Skipped before assuming
// full completion.
type StockActionResult struct {
	Success bool              `json:"success"`
	Applied []StockActionItem `json:"applied"`
	Skipped []SkippedItem     `json:"skipped"`
	Errors  []string          `json:"errors"`
}

// OverviewTotals aggregates ledger quantities across all warehouses.
type OverviewTotals struct {
	OnHand    float64 `json:"onHand"`
	Reserved  float64 `json:"reserved"`
	Available float64 `json:"available"`
}

// Overview is the warehouse dashboard aggregate.
type Overview struct {
	Totals         OverviewTotals `json:"totals"`
	LowStock       int            `json:"lowStock"`
	OutOfStock     int            `json:"outOfStock"`
	MovementsToday int            `json:"movementsToday"`
}

// ItemFilter narrows ledger listings.
type ItemFilter struct {
	WarehouseID int64
	ProductID   int64
	LowOnly     bool
	Page        int
	PerPage     int
}

// ReorderLevelInput updates thresholds for one inventory item.
type ReorderLevelInput struct {
	InventoryItemID int64
	ReorderPointQty float64
	ReorderQty      float64
}

// WarehouseUpdate carries a partial warehouse update. Nil fields are left
// untouched; setting Default to true clears the flag everywhere else.
type WarehouseUpdate struct {
	Name    *string
	Address *string
	Default *bool
}

var (
	// ErrNegativeStock triggered when a movement would drive on-hand below zero.
	ErrNegativeStock = errors.New("warehouse: negative stock not allowed")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("warehouse: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("warehouse: unit cost must be >= 0")
	// ErrItemNotFound indicates a missing ledger row.
	ErrItemNotFound = errors.New("warehouse: inventory item not found")
	// ErrWarehouseNotFound indicates a missing warehouse.
	ErrWarehouseNotFound = errors.New("warehouse: warehouse not found")
	// ErrDocumentNotFound indicates a missing stock document.
	ErrDocumentNotFound = errors.New("warehouse: stock document not found")
	// ErrDocumentNotDraft indicates a posting attempt on a non-draft document.
	ErrDocumentNotDraft = errors.New("warehouse: document is not in draft status")
	// ErrSameWarehouse rejects transfers onto the source warehouse.
	ErrSameWarehouse = errors.New("warehouse: source and target warehouse must differ")
	// ErrNoLines rejects documents without lines.
	ErrNoLines = errors.New("warehouse: document requires at least one line")
	// ErrInvalidAction indicates an unknown stock action kind.
	ErrInvalidAction = errors.New("warehouse: invalid stock action")
	// ErrInvalidInput indicates malformed fields in a request.
	ErrInvalidInput = errors.New("warehouse: invalid input")
)

package warehouse

import (
	"context"
	"sort"
	"time"

	"github.com/meridian-commerce/meridian/internal/shared"
)

// mockRepository keeps the ledger in maps and rolls state back when a
// transaction callback fails, mirroring the database behaviour the
// service relies on.
type mockRepository struct {
	items      map[int64]*InventoryItem
	itemIndex  map[[2]int64]int64 // (productID, warehouseID) -> item ID
	movements  []StockMovement
	documents  map[int64]*StockDocument
	warehouses map[int64]*Warehouse

	nextItemID      int64
	nextMovementID  int64
	nextDocumentID  int64
	nextWarehouseID int64

	txErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		items:           make(map[int64]*InventoryItem),
		itemIndex:       make(map[[2]int64]int64),
		documents:       make(map[int64]*StockDocument),
		warehouses:      make(map[int64]*Warehouse),
		nextItemID:      1,
		nextMovementID:  1,
		nextDocumentID:  1,
		nextWarehouseID: 1,
	}
}

func (m *mockRepository) seedWarehouse(code string, isDefault bool) Warehouse {
	w := Warehouse{ID: m.nextWarehouseID, Code: code, Name: code, IsDefault: isDefault}
	m.warehouses[w.ID] = &w
	m.nextWarehouseID++
	return w
}

func (m *mockRepository) seedItem(productID, warehouseID int64, onHand, reserved float64) InventoryItem {
	item := InventoryItem{
		ID:           m.nextItemID,
		ProductID:    productID,
		WarehouseID:  warehouseID,
		OnHandQty:    onHand,
		ReservedQty:  reserved,
		AvailableQty: onHand - reserved,
	}
	m.items[item.ID] = &item
	m.itemIndex[[2]int64{productID, warehouseID}] = item.ID
	m.nextItemID++
	return item
}

func (m *mockRepository) item(productID, warehouseID int64) InventoryItem {
	id, ok := m.itemIndex[[2]int64{productID, warehouseID}]
	if !ok {
		return InventoryItem{}
	}
	return *m.items[id]
}

// snapshot copies all mutable state so a failed transaction can restore it.
func (m *mockRepository) snapshot() *mockRepository {
	s := newMockRepository()
	for id, it := range m.items {
		cp := *it
		s.items[id] = &cp
	}
	for k, v := range m.itemIndex {
		s.itemIndex[k] = v
	}
	s.movements = append([]StockMovement(nil), m.movements...)
	for id, d := range m.documents {
		cp := *d
		cp.Lines = append([]StockDocumentLine(nil), d.Lines...)
		s.documents[id] = &cp
	}
	for id, w := range m.warehouses {
		cp := *w
		s.warehouses[id] = &cp
	}
	s.nextItemID = m.nextItemID
	s.nextMovementID = m.nextMovementID
	s.nextDocumentID = m.nextDocumentID
	s.nextWarehouseID = m.nextWarehouseID
	return s
}

func (m *mockRepository) restore(s *mockRepository) {
	m.items = s.items
	m.itemIndex = s.itemIndex
	m.movements = s.movements
	m.documents = s.documents
	m.warehouses = s.warehouses
	m.nextItemID = s.nextItemID
	m.nextMovementID = s.nextMovementID
	m.nextDocumentID = s.nextDocumentID
	m.nextWarehouseID = s.nextWarehouseID
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	saved := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

// --- TxRepository ---

func (m *mockRepository) GetItemForUpdate(ctx context.Context, productID, warehouseID int64) (InventoryItem, error) {
	id, ok := m.itemIndex[[2]int64{productID, warehouseID}]
	if !ok {
		return InventoryItem{}, ErrItemNotFound
	}
	return *m.items[id], nil
}

func (m *mockRepository) CreateItem(ctx context.Context, productID, warehouseID int64) (InventoryItem, error) {
	return m.seedItem(productID, warehouseID, 0, 0), nil
}

func (m *mockRepository) UpdateItemQuantities(ctx context.Context, itemID int64, onHand, reserved float64) error {
	item, ok := m.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	item.OnHandQty = onHand
	item.ReservedQty = reserved
	item.AvailableQty = onHand - reserved
	item.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepository) SetReorderLevels(ctx context.Context, itemID int64, point, qty float64) error {
	item, ok := m.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	item.ReorderPointQty = point
	item.ReorderQty = qty
	return nil
}

func (m *mockRepository) InsertMovement(ctx context.Context, mv StockMovement) (int64, error) {
	mv.ID = m.nextMovementID
	m.nextMovementID++
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *mockRepository) InsertDocument(ctx context.Context, doc StockDocument) (int64, error) {
	doc.ID = m.nextDocumentID
	m.nextDocumentID++
	doc.CreatedAt = time.Now()
	m.documents[doc.ID] = &doc
	return doc.ID, nil
}

func (m *mockRepository) InsertDocumentLines(ctx context.Context, docID int64, lines []StockDocumentLine) error {
	doc, ok := m.documents[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Lines = append(doc.Lines, lines...)
	return nil
}

func (m *mockRepository) GetDocumentForUpdate(ctx context.Context, id int64) (StockDocument, error) {
	doc, ok := m.documents[id]
	if !ok {
		return StockDocument{}, ErrDocumentNotFound
	}
	cp := *doc
	cp.Lines = append([]StockDocumentLine(nil), doc.Lines...)
	return cp, nil
}

func (m *mockRepository) MarkDocumentPosted(ctx context.Context, id, actorID int64, at time.Time) error {
	doc, ok := m.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	if doc.Status != DocumentDraft {
		return ErrDocumentNotDraft
	}
	doc.Status = DocumentPosted
	doc.PostedBy = actorID
	doc.PostedAt = &at
	return nil
}

func (m *mockRepository) GetDefaultWarehouse(ctx context.Context) (Warehouse, error) {
	for _, w := range m.sortedWarehouses() {
		if w.IsDefault {
			return w, nil
		}
	}
	return Warehouse{}, ErrWarehouseNotFound
}

func (m *mockRepository) GetFirstWarehouse(ctx context.Context) (Warehouse, error) {
	ws := m.sortedWarehouses()
	if len(ws) == 0 {
		return Warehouse{}, ErrWarehouseNotFound
	}
	return ws[0], nil
}

func (m *mockRepository) GetWarehouseForUpdate(ctx context.Context, id int64) (Warehouse, error) {
	return m.GetWarehouse(ctx, id)
}

func (m *mockRepository) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	w.ID = m.nextWarehouseID
	m.nextWarehouseID++
	w.CreatedAt = time.Now()
	m.warehouses[w.ID] = &w
	return w, nil
}

func (m *mockRepository) UpdateWarehouse(ctx context.Context, w Warehouse) error {
	if _, ok := m.warehouses[w.ID]; !ok {
		return ErrWarehouseNotFound
	}
	m.warehouses[w.ID] = &w
	return nil
}

func (m *mockRepository) ClearDefaultFlags(ctx context.Context, exceptID int64) error {
	for _, w := range m.warehouses {
		if w.ID != exceptID {
			w.IsDefault = false
		}
	}
	return nil
}

// --- read side ---

func (m *mockRepository) GetDocument(ctx context.Context, id int64) (StockDocument, []StockMovement, error) {
	doc, err := m.GetDocumentForUpdate(ctx, id)
	if err != nil {
		return StockDocument{}, nil, err
	}
	var movements []StockMovement
	for _, mv := range m.movements {
		if mv.RefType == RefDocument && mv.RefID == id {
			movements = append(movements, mv)
		}
	}
	return doc, movements, nil
}

func (m *mockRepository) ListOrderMovements(ctx context.Context, orderID int64) ([]StockMovement, error) {
	var out []StockMovement
	for _, mv := range m.movements {
		if mv.RefType == RefOrder && mv.RefID == orderID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *mockRepository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	w, ok := m.warehouses[id]
	if !ok {
		return Warehouse{}, ErrWarehouseNotFound
	}
	return *w, nil
}

func (m *mockRepository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return m.sortedWarehouses(), nil
}

func (m *mockRepository) ListItems(ctx context.Context, filter ItemFilter) ([]InventoryItem, int, error) {
	var out []InventoryItem
	for _, it := range m.items {
		if filter.WarehouseID != 0 && it.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.ProductID != 0 && it.ProductID != filter.ProductID {
			continue
		}
		if filter.LowOnly && !(it.ReorderPointQty > 0 && it.AvailableQty <= it.ReorderPointQty) {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepository) QuantityTotals(ctx context.Context) (OverviewTotals, error) {
	var t OverviewTotals
	for _, it := range m.items {
		t.OnHand += it.OnHandQty
		t.Reserved += it.ReservedQty
		t.Available += it.AvailableQty
	}
	return t, nil
}

func (m *mockRepository) CountLowStock(ctx context.Context) (int, error) {
	n := 0
	for _, it := range m.items {
		if it.ReorderPointQty > 0 && it.AvailableQty <= it.ReorderPointQty {
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) CountOutOfStock(ctx context.Context) (int, error) {
	n := 0
	for _, it := range m.items {
		if it.AvailableQty <= 0 {
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) CountMovementsSince(ctx context.Context, since time.Time) (int, error) {
	n := 0
	for _, mv := range m.movements {
		if !mv.OccurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) sortedWarehouses() []Warehouse {
	out := make([]Warehouse, 0, len(m.warehouses))
	for _, w := range m.warehouses {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mockAudit records audit entries for assertions.
type mockAudit struct {
	entries []shared.AuditLog
}

func (a *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

// mockEnqueuer counts scheduled low-stock scans.
type mockEnqueuer struct {
	scans int
}

func (e *mockEnqueuer) EnqueueLowStockScan(ctx context.Context) error {
	e.scans++
	return nil
}

func newTestService(repo *mockRepository) (*Service, *mockAudit, *mockEnqueuer) {
	audit := &mockAudit{}
	tasks := &mockEnqueuer{}
	svc := NewService(repo, audit, nil, tasks, nil)
	return svc, audit, tasks
}

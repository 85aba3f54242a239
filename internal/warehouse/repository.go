package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-commerce/meridian/internal/platform/db"
)

// Repository persists warehouse and ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
// Every ledger mutation goes through a row locked with FOR UPDATE so
// concurrent requests serialize on the database.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, productID, warehouseID int64) (InventoryItem, error)
	CreateItem(ctx context.Context, productID, warehouseID int64) (InventoryItem, error)
	UpdateItemQuantities(ctx context.Context, itemID int64, onHand, reserved float64) error
	SetReorderLevels(ctx context.Context, itemID int64, point, qty float64) error
	InsertMovement(ctx context.Context, m StockMovement) (int64, error)

	InsertDocument(ctx context.Context, doc StockDocument) (int64, error)
	InsertDocumentLines(ctx context.Context, docID int64, lines []StockDocumentLine) error
	GetDocumentForUpdate(ctx context.Context, id int64) (StockDocument, error)
	MarkDocumentPosted(ctx context.Context, id, actorID int64, at time.Time) error

	GetDefaultWarehouse(ctx context.Context) (Warehouse, error)
	GetFirstWarehouse(ctx context.Context) (Warehouse, error)
	GetWarehouseForUpdate(ctx context.Context, id int64) (Warehouse, error)
	CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error)
	UpdateWarehouse(ctx context.Context, w Warehouse) error
	ClearDefaultFlags(ctx context.Context, exceptID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("warehouse repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const itemColumns = `id, product_id, warehouse_id, on_hand_qty, reserved_qty, available_qty, reorder_point_qty, reorder_qty, updated_at`

func scanItem(row pgx.Row) (InventoryItem, error) {
	var it InventoryItem
	err := row.Scan(&it.ID, &it.ProductID, &it.WarehouseID, &it.OnHandQty, &it.ReservedQty, &it.AvailableQty, &it.ReorderPointQty, &it.ReorderQty, &it.UpdatedAt)
	return it, err
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, productID, warehouseID int64) (InventoryItem, error) {
	it, err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`, productID, warehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InventoryItem{}, ErrItemNotFound
		}
		return InventoryItem{}, err
	}
	return it, nil
}

func (r *txRepository) CreateItem(ctx context.Context, productID, warehouseID int64) (InventoryItem, error) {
	return scanItem(r.tx.QueryRow(ctx, `INSERT INTO inventory_items (product_id, warehouse_id, on_hand_qty, reserved_qty, available_qty, reorder_point_qty, reorder_qty, updated_at)
VALUES ($1,$2,0,0,0,0,0,NOW())
RETURNING `+itemColumns, productID, warehouseID))
}

func (r *txRepository) UpdateItemQuantities(ctx context.Context, itemID int64, onHand, reserved float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET on_hand_qty=$2, reserved_qty=$3, available_qty=$2-$3, updated_at=NOW() WHERE id=$1`, itemID, onHand, reserved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) SetReorderLevels(ctx context.Context, itemID int64, point, qty float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET reorder_point_qty=$2, reorder_qty=$3, updated_at=NOW() WHERE id=$1`, itemID, point, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m StockMovement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, warehouse_id, qty_delta, reason, ref_type, ref_id, note, created_by, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,COALESCE($9,NOW())) RETURNING id`,
		m.ProductID, m.WarehouseID, m.QtyDelta, m.Reason, m.RefType, m.RefID, m.Note, nullInt(m.CreatedBy), nullTime(m.OccurredAt)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertDocument(ctx context.Context, doc StockDocument) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_documents (doc_number, doc_type, status, warehouse_id, target_warehouse_id, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		doc.DocNumber, string(doc.Type), string(doc.Status), doc.WarehouseID, nullInt(doc.TargetWarehouseID), doc.Note, nullInt(doc.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertDocumentLines(ctx context.Context, docID int64, lines []StockDocumentLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_document_lines (document_id, product_id, product_name, qty, unit_cost)
VALUES ($1,$2,$3,$4,$5)`, docID, line.ProductID, line.ProductName, line.Qty, line.UnitCost); err != nil {
			return err
		}
	}
	return nil
}

const documentColumns = `id, doc_number, doc_type, status, warehouse_id, COALESCE(target_warehouse_id, 0), note, COALESCE(created_by, 0), COALESCE(posted_by, 0), posted_at, created_at`

func scanDocument(row pgx.Row) (StockDocument, error) {
	var doc StockDocument
	err := row.Scan(&doc.ID, &doc.DocNumber, &doc.Type, &doc.Status, &doc.WarehouseID, &doc.TargetWarehouseID, &doc.Note, &doc.CreatedBy, &doc.PostedBy, &doc.PostedAt, &doc.CreatedAt)
	return doc, err
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, id int64) (StockDocument, error) {
	doc, err := scanDocument(r.tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM stock_documents WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockDocument{}, ErrDocumentNotFound
		}
		return StockDocument{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, document_id, product_id, product_name, qty, unit_cost FROM stock_document_lines WHERE document_id=$1 ORDER BY id`, id)
	if err != nil {
		return StockDocument{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line StockDocumentLine
		if err := rows.Scan(&line.ID, &line.DocumentID, &line.ProductID, &line.ProductName, &line.Qty, &line.UnitCost); err != nil {
			return StockDocument{}, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc, rows.Err()
}

func (r *txRepository) MarkDocumentPosted(ctx context.Context, id, actorID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_documents SET status=$2, posted_by=$3, posted_at=$4 WHERE id=$1 AND status=$5`,
		id, string(DocumentPosted), nullInt(actorID), at, string(DocumentDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotDraft
	}
	return nil
}

const warehouseColumns = `id, code, name, address, is_default, created_at, updated_at`

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (r *txRepository) GetDefaultWarehouse(ctx context.Context) (Warehouse, error) {
	w, err := scanWarehouse(r.tx.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE is_default LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrWarehouseNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *txRepository) GetFirstWarehouse(ctx context.Context) (Warehouse, error) {
	w, err := scanWarehouse(r.tx.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses ORDER BY id LIMIT 1 FOR UPDATE`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrWarehouseNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *txRepository) GetWarehouseForUpdate(ctx context.Context, id int64) (Warehouse, error) {
	w, err := scanWarehouse(r.tx.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrWarehouseNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *txRepository) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	return scanWarehouse(r.tx.QueryRow(ctx, `INSERT INTO warehouses (code, name, address, is_default, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING `+warehouseColumns, w.Code, w.Name, w.Address, w.IsDefault))
}

func (r *txRepository) UpdateWarehouse(ctx context.Context, w Warehouse) error {
	tag, err := r.tx.Exec(ctx, `UPDATE warehouses SET name=$2, address=$3, is_default=$4, updated_at=NOW() WHERE id=$1`,
		w.ID, w.Name, w.Address, w.IsDefault)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWarehouseNotFound
	}
	return nil
}

func (r *txRepository) ClearDefaultFlags(ctx context.Context, exceptID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE warehouses SET is_default=FALSE, updated_at=NOW() WHERE is_default AND id<>$1`, exceptID)
	return err
}

// Read-side queries outside transactions.

// GetDocument loads a document with its lines and movement history.
func (r *Repository) GetDocument(ctx context.Context, id int64) (StockDocument, []StockMovement, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM stock_documents WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockDocument{}, nil, ErrDocumentNotFound
		}
		return StockDocument{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, document_id, product_id, product_name, qty, unit_cost FROM stock_document_lines WHERE document_id=$1 ORDER BY id`, id)
	if err != nil {
		return StockDocument{}, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line StockDocumentLine
		if err := rows.Scan(&line.ID, &line.DocumentID, &line.ProductID, &line.ProductName, &line.Qty, &line.UnitCost); err != nil {
			return StockDocument{}, nil, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return StockDocument{}, nil, err
	}

	movements, err := r.listMovements(ctx, RefDocument, id)
	if err != nil {
		return StockDocument{}, nil, err
	}
	return doc, movements, nil
}

// ListOrderMovements returns the movement history for an order.
func (r *Repository) ListOrderMovements(ctx context.Context, orderID int64) ([]StockMovement, error) {
	return r.listMovements(ctx, RefOrder, orderID)
}

func (r *Repository) listMovements(ctx context.Context, refType string, refID int64) ([]StockMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, qty_delta, reason, ref_type, ref_id, note, COALESCE(created_by, 0), occurred_at
FROM stock_movements WHERE ref_type=$1 AND ref_id=$2 ORDER BY id`, refType, refID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []StockMovement{}
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.QtyDelta, &m.Reason, &m.RefType, &m.RefID, &m.Note, &m.CreatedBy, &m.OccurredAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// GetWarehouse loads a single warehouse.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	w, err := scanWarehouse(r.pool.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrWarehouseNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

// ListWarehouses returns all warehouses ordered by ID.
func (r *Repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+warehouseColumns+` FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	warehouses := []Warehouse{}
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

// ListItems returns a page of ledger rows plus the total count.
func (r *Repository) ListItems(ctx context.Context, filter ItemFilter) ([]InventoryItem, int, error) {
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	where := ` WHERE ($1=0 OR warehouse_id=$1) AND ($2=0 OR product_id=$2) AND (NOT $3::bool OR (reorder_point_qty > 0 AND available_qty <= reorder_point_qty))`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+where, filter.WarehouseID, filter.ProductID, filter.LowOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items`+where+` ORDER BY warehouse_id, product_id LIMIT $4 OFFSET $5`,
		filter.WarehouseID, filter.ProductID, filter.LowOnly, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []InventoryItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// QuantityTotals sums ledger quantities across all warehouses.
func (r *Repository) QuantityTotals(ctx context.Context) (OverviewTotals, error) {
	var t OverviewTotals
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(on_hand_qty),0), COALESCE(SUM(reserved_qty),0), COALESCE(SUM(available_qty),0) FROM inventory_items`).
		Scan(&t.OnHand, &t.Reserved, &t.Available)
	return t, err
}

// CountLowStock counts items at or below their reorder point.
func (r *Repository) CountLowStock(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE reorder_point_qty > 0 AND available_qty <= reorder_point_qty`).Scan(&n)
	return n, err
}

// CountOutOfStock counts items with no on-hand stock.
func (r *Repository) CountOutOfStock(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE on_hand_qty <= 0`).Scan(&n)
	return n, err
}

// CountMovementsSince counts movements recorded at or after the cutoff.
func (r *Repository) CountMovementsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements WHERE occurred_at >= $1`, since).Scan(&n)
	return n, err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides pgx-backed access to orders.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, order_number, status, COALESCE(warehouse_id, 0), customer_email, total, created_at, updated_at`

// GetOrder loads an order and its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id).Scan(
		&o.ID, &o.OrderNumber, &o.Status, &o.WarehouseID, &o.CustomerEmail, &o.Total, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, product_name, qty FROM order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Qty); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// UpdateStatus moves an order from one status to another. The expected
// status in the WHERE clause guards against concurrent transitions.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to OrderStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`,
		to, id, from,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// SetWarehouse records the warehouse an order's stock actions were applied
// against, so release and commit hit the same ledger rows.
func (r *Repository) SetWarehouse(ctx context.Context, id, warehouseID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE orders SET warehouse_id=$1, updated_at=now() WHERE id=$2`, warehouseID, id)
	return err
}

package orders

import (
	"errors"
	"time"
)

// OrderStatus represents the lifecycle of a customer order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// CanConfirm reports whether the order may transition to CONFIRMED.
func (s OrderStatus) CanConfirm() bool {
	return s == StatusPending
}

// CanCancel reports whether the order may transition to CANCELLED.
func (s OrderStatus) CanCancel() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanShip reports whether the order may transition to SHIPPED.
func (s OrderStatus) CanShip() bool {
	return s == StatusConfirmed
}

// Order is a customer order whose lifecycle drives stock movements.
type Order struct {
	ID            int64       `json:"id"`
	OrderNumber   string      `json:"order_number"`
	Status        OrderStatus `json:"status"`
	WarehouseID   int64       `json:"warehouse_id,omitempty"`
	CustomerEmail string      `json:"customer_email"`
	Total         float64     `json:"total"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

// OrderItem is a single product line on an order.
type OrderItem struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Qty         float64 `json:"qty"`
}

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNoItems           = errors.New("order has no items")
)

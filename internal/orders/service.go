package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-commerce/meridian/internal/warehouse"
)

// RepositoryPort abstracts order persistence for the service.
type RepositoryPort interface {
	GetOrder(ctx context.Context, id int64) (Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to OrderStatus) error
	SetWarehouse(ctx context.Context, id, warehouseID int64) error
}

// StockPort is the slice of the warehouse module the order lifecycle needs.
type StockPort interface {
	ExecuteOrderStockAction(ctx context.Context, input warehouse.StockActionInput) (warehouse.StockActionResult, error)
	EnsureDefaultWarehouse(ctx context.Context) (warehouse.Warehouse, error)
}

// Service drives order status transitions and their stock side effects.
type Service struct {
	repo   RepositoryPort
	stock  StockPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, stock StockPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, stock: stock, logger: logger}
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// Confirm reserves stock for a pending order and moves it to CONFIRMED.
// A partial reserve still confirms the order; the result carries the
// skipped items for the caller to surface.
func (s *Service) Confirm(ctx context.Context, orderID, actorID int64) (warehouse.StockActionResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return warehouse.StockActionResult{}, err
	}
	if !order.Status.CanConfirm() {
		return warehouse.StockActionResult{}, fmt.Errorf("%w: cannot confirm order in status %s", ErrInvalidTransition, order.Status)
	}
	if len(order.Items) == 0 {
		return warehouse.StockActionResult{}, ErrNoItems
	}

	warehouseID, err := s.resolveWarehouse(ctx, order)
	if err != nil {
		return warehouse.StockActionResult{}, err
	}

	// The guarded UPDATE serializes concurrent transitions: only the caller
	// that wins it reaches the ledger.
	if err := s.repo.UpdateStatus(ctx, order.ID, StatusPending, StatusConfirmed); err != nil {
		return warehouse.StockActionResult{}, err
	}
	result, err := s.stock.ExecuteOrderStockAction(ctx, s.actionInput(order, warehouse.ActionReserve, warehouseID, actorID))
	if err != nil {
		s.revertStatus(ctx, order.ID, StatusConfirmed, StatusPending)
		return warehouse.StockActionResult{}, err
	}

	s.logger.Info("order confirmed",
		slog.Int64("order_id", order.ID),
		slog.Int("applied", len(result.Applied)),
		slog.Int("skipped", len(result.Skipped)))
	return result, nil
}

// Cancel releases reserved stock for a confirmed order. A pending order
// cancels without touching the ledger.
func (s *Service) Cancel(ctx context.Context, orderID, actorID int64) (warehouse.StockActionResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return warehouse.StockActionResult{}, err
	}
	if !order.Status.CanCancel() {
		return warehouse.StockActionResult{}, fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidTransition, order.Status)
	}

	if order.Status == StatusPending {
		if err := s.repo.UpdateStatus(ctx, order.ID, StatusPending, StatusCancelled); err != nil {
			return warehouse.StockActionResult{}, err
		}
		return warehouse.StockActionResult{Success: true}, nil
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, StatusConfirmed, StatusCancelled); err != nil {
		return warehouse.StockActionResult{}, err
	}
	result, err := s.stock.ExecuteOrderStockAction(ctx, s.actionInput(order, warehouse.ActionRelease, order.WarehouseID, actorID))
	if err != nil {
		s.revertStatus(ctx, order.ID, StatusCancelled, StatusConfirmed)
		return warehouse.StockActionResult{}, err
	}

	s.logger.Info("order cancelled", slog.Int64("order_id", order.ID))
	return result, nil
}

// Ship commits reserved stock for a confirmed order and moves it to SHIPPED.
func (s *Service) Ship(ctx context.Context, orderID, actorID int64) (warehouse.StockActionResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return warehouse.StockActionResult{}, err
	}
	if !order.Status.CanShip() {
		return warehouse.StockActionResult{}, fmt.Errorf("%w: cannot ship order in status %s", ErrInvalidTransition, order.Status)
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, StatusConfirmed, StatusShipped); err != nil {
		return warehouse.StockActionResult{}, err
	}
	result, err := s.stock.ExecuteOrderStockAction(ctx, s.actionInput(order, warehouse.ActionCommit, order.WarehouseID, actorID))
	if err != nil {
		s.revertStatus(ctx, order.ID, StatusShipped, StatusConfirmed)
		return warehouse.StockActionResult{}, err
	}

	s.logger.Info("order shipped",
		slog.Int64("order_id", order.ID),
		slog.Int("applied", len(result.Applied)),
		slog.Int("skipped", len(result.Skipped)))
	return result, nil
}

// resolveWarehouse returns the order's warehouse, falling back to the
// default warehouse and pinning it on the order so later actions hit the
// same ledger rows.
func (s *Service) resolveWarehouse(ctx context.Context, order Order) (int64, error) {
	if order.WarehouseID > 0 {
		return order.WarehouseID, nil
	}
	wh, err := s.stock.EnsureDefaultWarehouse(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.repo.SetWarehouse(ctx, order.ID, wh.ID); err != nil {
		return 0, err
	}
	return wh.ID, nil
}

// revertStatus undoes a transition whose stock action failed. The ledger
// transaction already rolled back and released its idempotency key, so a
// successful revert restores the pre-call state.
func (s *Service) revertStatus(ctx context.Context, orderID int64, from, to OrderStatus) {
	if err := s.repo.UpdateStatus(ctx, orderID, from, to); err != nil {
		s.logger.Error("revert order status",
			slog.Int64("order_id", orderID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.Any("error", err))
	}
}

func (s *Service) actionInput(order Order, action warehouse.StockActionKind, warehouseID, actorID int64) warehouse.StockActionInput {
	input := warehouse.StockActionInput{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Action:      action,
		WarehouseID: warehouseID,
		ActorID:     actorID,
	}
	for _, item := range order.Items {
		input.Items = append(input.Items, warehouse.StockActionItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Qty:         item.Qty,
		})
	}
	return input
}

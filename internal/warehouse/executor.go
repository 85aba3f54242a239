package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExecuteOrderStockAction applies a RESERVE, RELEASE or COMMIT action for an
// order's line items against the ledger inside one transaction. Items that
// cannot be applied (missing ledger row, insufficient stock) are reported in
// Skipped rather than aborting the whole action; database failures roll the
// transaction back entirely.
func (s *Service) ExecuteOrderStockAction(ctx context.Context, input StockActionInput) (StockActionResult, error) {
	if !input.Action.IsValid() {
		return StockActionResult{}, ErrInvalidAction
	}
	if input.OrderID <= 0 {
		return StockActionResult{}, fmt.Errorf("%w: order id required", ErrInvalidInput)
	}
	if input.WarehouseID <= 0 {
		return StockActionResult{}, fmt.Errorf("%w: warehouse id required", ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return StockActionResult{}, fmt.Errorf("%w: at least one item required", ErrInvalidInput)
	}

	// One key per (action, order): a retried request that already went
	// through must not reserve or commit stock twice.
	key := fmt.Sprintf("%s:order:%d", input.Action, input.OrderID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "warehouse"); err != nil {
			return StockActionResult{}, err
		}
		insertedKey = true
	}

	result := StockActionResult{Applied: []StockActionItem{}, Skipped: []SkippedItem{}, Errors: []string{}}
	now := time.Now().UTC()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range input.Items {
			if item.Qty <= 0 {
				result.skip(item, "quantity must be positive")
				continue
			}

			ledger, err := tx.GetItemForUpdate(ctx, item.ProductID, input.WarehouseID)
			if errors.Is(err, ErrItemNotFound) {
				result.skip(item, fmt.Sprintf("no inventory for product %d at warehouse %d", item.ProductID, input.WarehouseID))
				continue
			}
			if err != nil {
				return err
			}

			onHand, reserved := ledger.OnHandQty, ledger.ReservedQty
			switch input.Action {
			case ActionReserve:
				if ledger.AvailableQty < item.Qty {
					result.skip(item, fmt.Sprintf("insufficient stock: available %g, requested %g", ledger.AvailableQty, item.Qty))
					continue
				}
				reserved += item.Qty
			case ActionRelease:
				reserved -= item.Qty
				if reserved < 0 {
					reserved = 0
				}
			case ActionCommit:
				if onHand < item.Qty {
					result.skip(item, fmt.Sprintf("insufficient on-hand stock: %g, requested %g", onHand, item.Qty))
					continue
				}
				onHand -= item.Qty
				reserved -= item.Qty
				if reserved < 0 {
					reserved = 0
				}
			}

			if err := tx.UpdateItemQuantities(ctx, ledger.ID, onHand, reserved); err != nil {
				return err
			}

			delta := -item.Qty
			if input.Action == ActionRelease {
				delta = item.Qty
			}
			movement := StockMovement{
				ProductID:   item.ProductID,
				WarehouseID: input.WarehouseID,
				QtyDelta:    delta,
				Reason:      string(input.Action),
				RefType:     RefOrder,
				RefID:       input.OrderID,
				Note:        input.OrderNumber,
				CreatedBy:   input.ActorID,
				OccurredAt:  now,
			}
			if _, err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
			result.Applied = append(result.Applied, item)
		}
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return StockActionResult{}, err
	}

	result.Success = len(result.Skipped) == 0
	s.recordAudit(ctx, input.ActorID, fmt.Sprintf("stock:%s", input.Action), "order", input.OrderID, map[string]any{
		"warehouse_id": input.WarehouseID,
		"applied":      len(result.Applied),
		"skipped":      len(result.Skipped),
	})
	return result, nil
}

func (r *StockActionResult) skip(item StockActionItem, reason string) {
	r.Skipped = append(r.Skipped, SkippedItem{StockActionItem: item, Reason: reason})
	r.Errors = append(r.Errors, fmt.Sprintf("product %d: %s", item.ProductID, reason))
}

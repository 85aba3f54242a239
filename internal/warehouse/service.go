package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-commerce/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDocument(ctx context.Context, id int64) (StockDocument, []StockMovement, error)
	ListOrderMovements(ctx context.Context, orderID int64) ([]StockMovement, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]InventoryItem, int, error)
	QuantityTotals(ctx context.Context) (OverviewTotals, error)
	CountLowStock(ctx context.Context) (int, error)
	CountOutOfStock(ctx context.Context) (int, error)
	CountMovementsSince(ctx context.Context, since time.Time) (int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TaskEnqueuer submits background work after ledger updates. Ledger
// mutations themselves never run in the background.
type TaskEnqueuer interface {
	EnqueueLowStockScan(ctx context.Context) error
}

// Service coordinates ledger, document and warehouse operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	tasks       TaskEnqueuer
	logger      *slog.Logger
}

// NewService builds Service. Audit, idempotency and tasks are optional.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, tasks TaskEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, tasks: tasks, logger: logger}
}

// EnsureDefaultWarehouse returns the default warehouse, designating or
// creating one inside a transaction when none is flagged. Callers always
// obtain a single warehouse to target.
func (s *Service) EnsureDefaultWarehouse(ctx context.Context) (Warehouse, error) {
	var result Warehouse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		w, err := tx.GetDefaultWarehouse(ctx)
		if err == nil {
			result = w
			return nil
		}
		if !errors.Is(err, ErrWarehouseNotFound) {
			return err
		}

		first, err := tx.GetFirstWarehouse(ctx)
		if errors.Is(err, ErrWarehouseNotFound) {
			created, err := tx.CreateWarehouse(ctx, Warehouse{Code: "MAIN", Name: "Main Warehouse", IsDefault: true})
			if err != nil {
				return err
			}
			result = created
			return nil
		}
		if err != nil {
			return err
		}

		first.IsDefault = true
		if err := tx.UpdateWarehouse(ctx, first); err != nil {
			return err
		}
		if err := tx.ClearDefaultFlags(ctx, first.ID); err != nil {
			return err
		}
		result = first
		return nil
	})
	return result, err
}

// CreateWarehouse inserts a warehouse. The first warehouse ever created
// becomes the default regardless of the submitted flag.
func (s *Service) CreateWarehouse(ctx context.Context, w Warehouse, actorID int64) (Warehouse, error) {
	if w.Name == "" || w.Code == "" {
		return Warehouse{}, fmt.Errorf("%w: warehouse code and name required", ErrInvalidInput)
	}
	var created Warehouse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetDefaultWarehouse(ctx); errors.Is(err, ErrWarehouseNotFound) {
			w.IsDefault = true
		} else if err != nil {
			return err
		}
		var err error
		created, err = tx.CreateWarehouse(ctx, w)
		if err != nil {
			return err
		}
		if created.IsDefault {
			return tx.ClearDefaultFlags(ctx, created.ID)
		}
		return nil
	})
	if err != nil {
		return Warehouse{}, err
	}
	s.recordAudit(ctx, actorID, "warehouse:create", "warehouse", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// ErrCannotUnsetDefault rejects removing the default flag without
// designating another warehouse.
var ErrCannotUnsetDefault = errors.New("warehouse: cannot unset the default flag; set another warehouse as default instead")

// UpdateWarehouse applies a partial update. Setting the default flag
// clears it on every other warehouse within the same transaction, so the
// single-default invariant holds after any sequence of updates.
func (s *Service) UpdateWarehouse(ctx context.Context, id int64, upd WarehouseUpdate, actorID int64) (Warehouse, error) {
	var result Warehouse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		w, err := tx.GetWarehouseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			if *upd.Name == "" {
				return fmt.Errorf("%w: warehouse name required", ErrInvalidInput)
			}
			w.Name = *upd.Name
		}
		if upd.Address != nil {
			w.Address = *upd.Address
		}
		if upd.Default != nil {
			if !*upd.Default && w.IsDefault {
				return ErrCannotUnsetDefault
			}
			w.IsDefault = *upd.Default
		}
		if err := tx.UpdateWarehouse(ctx, w); err != nil {
			return err
		}
		if w.IsDefault {
			if err := tx.ClearDefaultFlags(ctx, w.ID); err != nil {
				return err
			}
		}
		result = w
		return nil
	})
	if err != nil {
		return Warehouse{}, err
	}
	s.recordAudit(ctx, actorID, "warehouse:update", "warehouse", result.ID, map[string]any{"default": result.IsDefault})
	return result, nil
}

// UpdateReorderLevels updates replenishment thresholds for a batch of
// ledger rows atomically, then schedules a low-stock scan.
func (s *Service) UpdateReorderLevels(ctx context.Context, inputs []ReorderLevelInput, actorID int64) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrInvalidInput)
	}
	for _, in := range inputs {
		if in.InventoryItemID <= 0 || in.ReorderPointQty < 0 || in.ReorderQty < 0 {
			return fmt.Errorf("%w: reorder levels must be >= 0", ErrInvalidInput)
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, in := range inputs {
			if err := tx.SetReorderLevels(ctx, in.InventoryItemID, in.ReorderPointQty, in.ReorderQty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "inventory:reorder_levels", "inventory_items", int64(len(inputs)), map[string]any{"count": len(inputs)})
	if s.tasks != nil {
		if err := s.tasks.EnqueueLowStockScan(ctx); err != nil {
			s.logger.Warn("enqueue low stock scan", slog.Any("error", err))
		}
	}
	return nil
}

// Overview fans out the dashboard aggregate queries.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var ov Overview
	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.repo.QuantityTotals(ctx)
		ov.Totals = totals
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountLowStock(ctx)
		ov.LowStock = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountOutOfStock(ctx)
		ov.OutOfStock = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountMovementsSince(ctx, startOfDay)
		ov.MovementsToday = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return ov, nil
}

// ListItems pages through the ledger.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]InventoryItem, int, error) {
	return s.repo.ListItems(ctx, filter)
}

// ListWarehouses returns every warehouse.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

// GetWarehouse loads one warehouse.
func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

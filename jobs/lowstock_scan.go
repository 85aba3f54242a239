package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EmailEnqueuer submits notification emails to the queue.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// LowStockScanJob finds ledger rows at or below their reorder point and
// notifies the operations mailbox. The scan only reads the ledger; stock
// quantities are never changed from a background job.
type LowStockScanJob struct {
	Pool      *pgxpool.Pool
	Mail      EmailEnqueuer
	Logger    *slog.Logger
	Recipient string
	clock     func() time.Time
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(pool *pgxpool.Pool, mail EmailEnqueuer, logger *slog.Logger, recipient string) *LowStockScanJob {
	return &LowStockScanJob{
		Pool:      pool,
		Mail:      mail,
		Logger:    logger,
		Recipient: recipient,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type lowStockRow struct {
	ProductID       int64
	WarehouseCode   string
	AvailableQty    float64
	ReorderPointQty float64
	ReorderQty      float64
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("low stock scan: handler not configured")
	}
	start := j.now()
	logger := j.logger()
	logger.Info("starting low stock scan")

	rows, err := j.Pool.Query(ctx, `
		SELECT i.product_id, w.code, i.available_qty, i.reorder_point_qty, i.reorder_qty
		FROM inventory_items i
		JOIN warehouses w ON w.id = i.warehouse_id
		WHERE i.reorder_point_qty > 0 AND i.available_qty <= i.reorder_point_qty
		ORDER BY w.code, i.product_id`)
	if err != nil {
		logger.Error("scan query failed", slog.Any("error", err))
		return err
	}
	defer rows.Close()

	var low []lowStockRow
	for rows.Next() {
		var r lowStockRow
		if err := rows.Scan(&r.ProductID, &r.WarehouseCode, &r.AvailableQty, &r.ReorderPointQty, &r.ReorderQty); err != nil {
			return err
		}
		low = append(low, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(low) > 0 && j.Mail != nil && j.Recipient != "" {
		payload := SendEmailPayload{
			To:      j.Recipient,
			Subject: fmt.Sprintf("Low stock alert: %d item(s) below reorder point", len(low)),
			Body:    formatLowStockReport(low),
		}
		if _, err := j.Mail.EnqueueSendEmail(ctx, payload); err != nil {
			logger.Error("enqueue low stock email", slog.Any("error", err))
			return err
		}
	}

	logger.Info("completed low stock scan",
		slog.Int("low_items", len(low)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func formatLowStockReport(rows []lowStockRow) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	b.WriteString("The following items are at or below their reorder point:\n\n")
	for _, r := range rows {
		p.Fprintf(&b, "- product %d at %s: %.0f available (reorder point %.0f, suggested order %.0f)\n",
			r.ProductID, r.WarehouseCode, r.AvailableQty, r.ReorderPointQty, r.ReorderQty)
	}
	return b.String()
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

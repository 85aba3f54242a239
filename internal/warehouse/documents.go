package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DocumentLineInput is one submitted document line.
type DocumentLineInput struct {
	ProductID   int64
	ProductName string
	Qty         float64
	UnitCost    float64
}

// CreateDocumentInput describes a draft document to author.
type CreateDocumentInput struct {
	DocNumber         string
	Type              DocumentType
	WarehouseID       int64
	TargetWarehouseID int64
	Note              string
	Lines             []DocumentLineInput
	ActorID           int64
}

// CreateDocument stores a DRAFT stock document with its lines. Drafts do not
// touch the ledger until posted.
func (s *Service) CreateDocument(ctx context.Context, input CreateDocumentInput) (StockDocument, error) {
	if !input.Type.IsValid() {
		return StockDocument{}, fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, input.Type)
	}
	if input.WarehouseID <= 0 {
		return StockDocument{}, fmt.Errorf("%w: warehouse id required", ErrInvalidInput)
	}
	if len(input.Lines) == 0 {
		return StockDocument{}, ErrNoLines
	}
	if input.Type == DocumentTransfer {
		if input.TargetWarehouseID <= 0 {
			return StockDocument{}, fmt.Errorf("%w: transfer requires a target warehouse", ErrInvalidInput)
		}
		if input.TargetWarehouseID == input.WarehouseID {
			return StockDocument{}, ErrSameWarehouse
		}
	} else if input.TargetWarehouseID != 0 {
		return StockDocument{}, fmt.Errorf("%w: target warehouse only valid for transfers", ErrInvalidInput)
	}
	for _, line := range input.Lines {
		if line.ProductID <= 0 {
			return StockDocument{}, fmt.Errorf("%w: product id required", ErrInvalidInput)
		}
		if line.UnitCost < 0 {
			return StockDocument{}, ErrInvalidUnitCost
		}
		if input.Type == DocumentAdjustment {
			if line.Qty == 0 {
				return StockDocument{}, ErrInvalidQuantity
			}
		} else if line.Qty <= 0 {
			return StockDocument{}, ErrInvalidQuantity
		}
	}

	docNumber := input.DocNumber
	if docNumber == "" {
		docNumber = fmt.Sprintf("%s-%d", docPrefix(input.Type), time.Now().UTC().UnixNano())
	}

	doc := StockDocument{
		DocNumber:         docNumber,
		Type:              input.Type,
		Status:            DocumentDraft,
		WarehouseID:       input.WarehouseID,
		TargetWarehouseID: input.TargetWarehouseID,
		Note:              input.Note,
		CreatedBy:         input.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetWarehouseForUpdate(ctx, input.WarehouseID); err != nil {
			return err
		}
		if input.Type == DocumentTransfer {
			if _, err := tx.GetWarehouseForUpdate(ctx, input.TargetWarehouseID); err != nil {
				return err
			}
		}
		id, err := tx.InsertDocument(ctx, doc)
		if err != nil {
			return err
		}
		doc.ID = id
		lines := make([]StockDocumentLine, 0, len(input.Lines))
		for _, in := range input.Lines {
			lines = append(lines, StockDocumentLine{
				DocumentID:  id,
				ProductID:   in.ProductID,
				ProductName: in.ProductName,
				Qty:         in.Qty,
				UnitCost:    in.UnitCost,
			})
		}
		doc.Lines = lines
		return tx.InsertDocumentLines(ctx, id, lines)
	})
	if err != nil {
		return StockDocument{}, err
	}
	s.recordAudit(ctx, input.ActorID, "document:create", "stock_document", doc.ID, map[string]any{"type": string(doc.Type)})
	return doc, nil
}

// PostDocument applies every line's ledger delta atomically and marks the
// document POSTED. A single line driving on-hand or available below zero
// fails the whole posting; posting a non-draft document is a state conflict.
func (s *Service) PostDocument(ctx context.Context, id, actorID int64) (StockDocument, error) {
	var posted StockDocument
	now := time.Now().UTC()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != DocumentDraft {
			return ErrDocumentNotDraft
		}
		if len(doc.Lines) == 0 {
			return ErrNoLines
		}

		for _, line := range doc.Lines {
			if err := applyDocumentLine(ctx, tx, doc, line, actorID, now); err != nil {
				return err
			}
		}

		if err := tx.MarkDocumentPosted(ctx, doc.ID, actorID, now); err != nil {
			return err
		}
		doc.Status = DocumentPosted
		doc.PostedBy = actorID
		doc.PostedAt = &now
		posted = doc
		return nil
	})
	if err != nil {
		return StockDocument{}, err
	}
	s.recordAudit(ctx, actorID, "document:post", "stock_document", posted.ID, map[string]any{"type": string(posted.Type), "lines": len(posted.Lines)})
	return posted, nil
}

// GetDocument loads a document with its lines and movements.
func (s *Service) GetDocument(ctx context.Context, id int64) (StockDocument, []StockMovement, error) {
	return s.repo.GetDocument(ctx, id)
}

func applyDocumentLine(ctx context.Context, tx TxRepository, doc StockDocument, line StockDocumentLine, actorID int64, now time.Time) error {
	switch doc.Type {
	case DocumentReceipt:
		return applyDelta(ctx, tx, doc, line.ProductID, doc.WarehouseID, line.Qty, actorID, now, true)
	case DocumentIssue:
		return applyDelta(ctx, tx, doc, line.ProductID, doc.WarehouseID, -line.Qty, actorID, now, false)
	case DocumentAdjustment:
		return applyDelta(ctx, tx, doc, line.ProductID, doc.WarehouseID, line.Qty, actorID, now, line.Qty > 0)
	case DocumentTransfer:
		if err := applyDelta(ctx, tx, doc, line.ProductID, doc.WarehouseID, -line.Qty, actorID, now, false); err != nil {
			return err
		}
		return applyDelta(ctx, tx, doc, line.ProductID, doc.TargetWarehouseID, line.Qty, actorID, now, true)
	default:
		return fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, doc.Type)
	}
}

// applyDelta mutates one ledger row and appends the movement record.
// createMissing only holds for inbound deltas; outbound deltas against a
// missing row fail the posting.
func applyDelta(ctx context.Context, tx TxRepository, doc StockDocument, productID, warehouseID int64, delta float64, actorID int64, now time.Time, createMissing bool) error {
	item, err := tx.GetItemForUpdate(ctx, productID, warehouseID)
	if errors.Is(err, ErrItemNotFound) {
		if !createMissing {
			return fmt.Errorf("%w: product %d at warehouse %d", ErrItemNotFound, productID, warehouseID)
		}
		item, err = tx.CreateItem(ctx, productID, warehouseID)
	}
	if err != nil {
		return err
	}

	newOnHand := item.OnHandQty + delta
	if newOnHand < 0 {
		return fmt.Errorf("%w: product %d at warehouse %d would reach %g on hand", ErrNegativeStock, productID, warehouseID, newOnHand)
	}
	if newOnHand-item.ReservedQty < 0 {
		return fmt.Errorf("%w: product %d at warehouse %d has %g reserved", ErrNegativeStock, productID, warehouseID, item.ReservedQty)
	}

	if err := tx.UpdateItemQuantities(ctx, item.ID, newOnHand, item.ReservedQty); err != nil {
		return err
	}
	_, err = tx.InsertMovement(ctx, StockMovement{
		ProductID:   productID,
		WarehouseID: warehouseID,
		QtyDelta:    delta,
		Reason:      string(doc.Type),
		RefType:     RefDocument,
		RefID:       doc.ID,
		Note:        doc.DocNumber,
		CreatedBy:   actorID,
		OccurredAt:  now,
	})
	return err
}

func docPrefix(t DocumentType) string {
	switch t {
	case DocumentReceipt:
		return "RCT"
	case DocumentIssue:
		return "ISS"
	case DocumentAdjustment:
		return "ADJ"
	case DocumentTransfer:
		return "TRF"
	default:
		return "DOC"
	}
}

package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	GetReceipt(ctx context.Context, id int64) (Receipt, error)
	ListReceiptsByPO(ctx context.Context, poID int64) ([]Receipt, error)
	MarkInventoryPosted(ctx context.Context, receiptID int64) error
	ListUnpostedReceipts(ctx context.Context, olderThan time.Time, limit int) ([]Receipt, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns purchase orders and goods receipts: it is the system of
// record for cumulative received quantities and the PO lifecycle status.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// GetPurchaseOrder fetches the order with lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

// CreateReceipt persists one immutable receipt for a delivery event,
// advances the cumulative received quantity on each referenced PO line and
// re-derives the order status, all inside one transaction. The workflow
// never mutates those quantities itself; this is the single writer.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (Receipt, error) {
	if len(input.Lines) == 0 {
		return Receipt{}, shared.ValidationError("lineItems", "at least one line is required")
	}
	po, err := s.repo.GetPurchaseOrder(ctx, input.POID)
	if err != nil {
		return Receipt{}, err
	}
	if input.Number == "" {
		input.Number = generateNumber("RCV")
	}
	receipt := Receipt{
		Number:     input.Number,
		POID:       input.POID,
		VendorID:   po.VendorID,
		ReceivedBy: input.ReceivedBy,
		ReceivedAt: defaultTime(input.ReceivedAt),
		Status:     ReceiptStatusCompleted,
		Note:       input.Note,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stored, err := tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		receipt.ID = stored.ID
		receipt.CreatedAt = stored.CreatedAt
		for _, in := range input.Lines {
			line := ReceiptLine{
				ReceiptID:    receipt.ID,
				POLineID:     in.POLineID,
				ProductID:    in.ProductID,
				QtyReceived:  in.QtyReceived,
				QtyRejected:  in.QtyRejected,
				RejectReason: in.RejectReason,
				Note:         in.Note,
			}
			lineID, err := tx.InsertReceiptLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			receipt.Lines = append(receipt.Lines, line)
			if in.QtyReceived > 0 {
				if err := tx.AddLineReceivedQty(ctx, in.POLineID, in.QtyReceived); err != nil {
					return err
				}
			}
		}
		lines, err := tx.GetPOLines(ctx, input.POID)
		if err != nil {
			return err
		}
		updated := po
		updated.Lines = lines
		if next := updated.DeriveStatus(); next != po.Status {
			if err := tx.UpdatePOStatus(ctx, input.POID, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	s.recordAudit(ctx, "RCV_CREATE", receipt.ID, map[string]any{"number": receipt.Number, "po_id": receipt.POID})
	return receipt, nil
}

// GetReceipt fetches a receipt with lines.
func (s *Service) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// GetReceiptsByPurchaseOrder lists receipts recorded against the order.
func (s *Service) GetReceiptsByPurchaseOrder(ctx context.Context, poID int64) ([]Receipt, error) {
	if _, err := s.repo.GetPurchaseOrder(ctx, poID); err != nil {
		return nil, err
	}
	return s.repo.ListReceiptsByPO(ctx, poID)
}

// MarkInventoryPosted records that all stock postings for a receipt landed.
func (s *Service) MarkInventoryPosted(ctx context.Context, receiptID int64) error {
	if err := s.repo.MarkInventoryPosted(ctx, receiptID); err != nil {
		return err
	}
	s.recordAudit(ctx, "RCV_POST", receiptID, nil)
	return nil
}

// ListUnpostedReceipts surfaces receipts needing inventory reconciliation.
func (s *Service) ListUnpostedReceipts(ctx context.Context, olderThan time.Time, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListUnpostedReceipts(ctx, olderThan, limit)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "procurement", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now()
	}
	return value
}

package finance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetMatchFacts(ctx context.Context, poID int64) (MatchFacts, error)
	CountBillsByPO(ctx context.Context, poID int64) (int, error)
	GetLatestBillByPO(ctx context.Context, poID int64) (VendorBill, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service evaluates three-way match state and creates vendor bills.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	audit AuditPort
}

// NewService constructs the finance service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// GetThreeWayMatchStatus returns the current match snapshot for a purchase
// order. The snapshot is derived from the stored quantities on demand and
// cached briefly; it never mutates state.
func (s *Service) GetThreeWayMatchStatus(ctx context.Context, poID int64) (ThreeWayMatchStatus, error) {
	return s.cache.FetchMatch(ctx, poID, func(ctx context.Context) (ThreeWayMatchStatus, error) {
		return s.evaluate(ctx, poID)
	})
}

func (s *Service) evaluate(ctx context.Context, poID int64) (ThreeWayMatchStatus, error) {
	facts, err := s.repo.GetMatchFacts(ctx, poID)
	if err != nil {
		return ThreeWayMatchStatus{}, err
	}
	if !facts.POExists {
		return ThreeWayMatchStatus{}, shared.NotFoundError("finance: purchase order not found")
	}

	status := ThreeWayMatchStatus{POID: poID, EvaluatedAt: time.Now().UTC()}
	if len(facts.Lines) == 0 || facts.ReceiptCount == 0 {
		return status, nil
	}

	poMatched := facts.ReceiptCount > 0
	receiptMatched := true
	billMatched := facts.BillCount > 0
	for _, line := range facts.Lines {
		if line.QtyReceived < line.QtyOrdered {
			receiptMatched = false
			status.Variances = append(status.Variances, MatchVariance{
				POLineID: line.POLineID,
				Field:    "quantityReceived",
				Expected: line.QtyOrdered,
				Actual:   line.QtyReceived,
			})
		}
		if line.QtyReceived > line.QtyOrdered {
			// Over-receipt within tolerance was accepted upstream; surface
			// it as a variance without breaking the quantity match.
			status.Variances = append(status.Variances, MatchVariance{
				POLineID: line.POLineID,
				Field:    "quantityReceived",
				Expected: line.QtyOrdered,
				Actual:   line.QtyReceived,
			})
		}
		if line.QtyBilled > line.QtyReceived {
			billMatched = false
			status.Variances = append(status.Variances, MatchVariance{
				POLineID: line.POLineID,
				Field:    "quantityBilled",
				Expected: line.QtyReceived,
				Actual:   line.QtyBilled,
			})
		}
	}

	status.POMatched = poMatched
	status.ReceiptMatched = receiptMatched
	status.BillMatched = billMatched
	status.FullyMatched = poMatched && receiptMatched
	return status, nil
}

// CreateVendorBill creates a bill from received lines. At most one bill is
// created per purchase order: a second call reports the existing bill via
// ErrAlreadyBilled so the caller can resolve it with GetBillByPO.
func (s *Service) CreateVendorBill(ctx context.Context, input CreateVendorBillInput) (VendorBill, error) {
	if len(input.Lines) == 0 {
		return VendorBill{}, shared.ValidationError("lineItems", "finance: at least one line is required")
	}
	count, err := s.repo.CountBillsByPO(ctx, input.POID)
	if err != nil {
		return VendorBill{}, err
	}
	if count > 0 {
		return VendorBill{}, ErrAlreadyBilled
	}

	if input.Number == "" {
		input.Number = fmt.Sprintf("BILL-%d", time.Now().UnixNano())
	}
	if input.DueAt.IsZero() {
		input.DueAt = input.BillDate.AddDate(0, 0, 30)
	}

	var subtotal float64
	for _, line := range input.Lines {
		subtotal += line.Quantity * line.UnitPrice
	}
	subtotal = math.Round(subtotal*100) / 100

	bill := VendorBill{
		Number:   input.Number,
		VendorID: input.VendorID,
		POID:     input.POID,
		BillDate: input.BillDate,
		DueAt:    input.DueAt,
		Subtotal: subtotal,
		Total:    subtotal,
		Status:   BillStatusDraft,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertBill(ctx, bill)
		if err != nil {
			return err
		}
		bill.ID = id
		for _, in := range input.Lines {
			line := VendorBillLine{
				BillID:          id,
				POLineID:        in.POLineID,
				ProductID:       in.ProductID,
				Description:     in.Description,
				Quantity:        in.Quantity,
				UnitPrice:       in.UnitPrice,
				LedgerAccountID: in.LedgerAccountID,
				Total:           math.Round(in.Quantity*in.UnitPrice*100) / 100,
			}
			lineID, err := tx.InsertBillLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			bill.Lines = append(bill.Lines, line)
			if in.Quantity > 0 {
				if err := tx.AddLineBilledQty(ctx, in.POLineID, in.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return VendorBill{}, err
	}
	_ = s.cache.Invalidate(ctx, input.POID)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "BILL_CREATE",
			Entity:   "vendor_bill",
			EntityID: fmt.Sprintf("%d", bill.ID),
			Meta:     map[string]any{"number": bill.Number, "po_id": bill.POID, "total": bill.Total},
		})
	}
	return bill, nil
}

// GetBillByPO returns the latest non-void bill for the order.
func (s *Service) GetBillByPO(ctx context.Context, poID int64) (VendorBill, error) {
	return s.repo.GetLatestBillByPO(ctx, poID)
}

// InvalidateMatch drops the cached snapshot after receiving activity.
func (s *Service) InvalidateMatch(ctx context.Context, poID int64) {
	_ = s.cache.Invalidate(ctx, poID)
}

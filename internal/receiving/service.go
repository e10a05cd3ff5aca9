package receiving

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ProcurementPort is the slice of procurement the workflow consumes.
type ProcurementPort interface {
	GetPurchaseOrder(ctx context.Context, id int64) (procurement.PurchaseOrder, error)
	CreateReceipt(ctx context.Context, input procurement.CreateReceiptInput) (procurement.Receipt, error)
	GetReceiptsByPurchaseOrder(ctx context.Context, poID int64) ([]procurement.Receipt, error)
	MarkInventoryPosted(ctx context.Context, receiptID int64) error
}

// InventoryPort exposes required inventory integration.
type InventoryPort interface {
	ReceiveInventory(ctx context.Context, input inventory.ReceiveInput) (inventory.StockEntry, error)
}

// FinancialPort exposes the match evaluation and billing integration.
type FinancialPort interface {
	GetThreeWayMatchStatus(ctx context.Context, poID int64) (finance.ThreeWayMatchStatus, error)
	CreateVendorBill(ctx context.Context, input finance.CreateVendorBillInput) (finance.VendorBill, error)
	GetBillByPO(ctx context.Context, poID int64) (finance.VendorBill, error)
	InvalidateMatch(ctx context.Context, poID int64)
}

// IdempotencyPort guards against reprocessing a delivery submission.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// DefaultExpenseAccountID tags auto-created bill lines whose PO line has
// no ledger account assigned.
const DefaultExpenseAccountID int64 = 6000

// Config groups workflow settings.
type Config struct {
	OverReceiptTolerance float64
	PaymentTermDays      int
}

// Service orchestrates the receiving workflow: validate, record the
// receipt, post inventory per line, resolve the PO status, then
// conditionally evaluate the three-way match and generate a vendor bill.
// No step is retried and nothing is rolled back: a failure after the
// receipt is recorded leaves a durable receipt with incomplete downstream
// effects, picked up later by the reconciliation job.
type Service struct {
	proc        ProcurementPort
	inv         InventoryPort
	fin         FinancialPort
	idempotency IdempotencyPort
	metrics     *observability.Metrics
	cfg         Config
}

// NewService constructs the receiving orchestrator.
func NewService(proc ProcurementPort, inv InventoryPort, fin FinancialPort, idem IdempotencyPort, metrics *observability.Metrics, cfg Config) *Service {
	if cfg.OverReceiptTolerance <= 0 {
		cfg.OverReceiptTolerance = DefaultOverReceiptTolerance
	}
	if cfg.PaymentTermDays <= 0 {
		cfg.PaymentTermDays = 30
	}
	return &Service{proc: proc, inv: inv, fin: fin, idempotency: idem, metrics: metrics, cfg: cfg}
}

// Receive executes the workflow for one delivery event.
func (s *Service) Receive(ctx context.Context, cmd ReceiveCommand) (ReceiveResult, error) {
	po, err := s.proc.GetPurchaseOrder(ctx, cmd.POID)
	if err != nil {
		return ReceiveResult{}, err
	}

	validated, err := ValidateReceive(&po, cmd.Lines, s.cfg.OverReceiptTolerance)
	if err != nil {
		return ReceiveResult{}, err
	}

	receiptInput := procurement.CreateReceiptInput{
		POID:       cmd.POID,
		Number:     cmd.ReceiptNumber,
		ReceivedBy: cmd.ReceivedBy,
		ReceivedAt: cmd.ReceivedAt,
		Note:       cmd.Note,
	}
	for _, line := range validated {
		receiptInput.Lines = append(receiptInput.Lines, procurement.CreateReceiptLineInput{
			POLineID:     line.POLine.ID,
			ProductID:    line.POLine.ProductID,
			QtyReceived:  line.QtyReceived,
			QtyRejected:  line.QtyRejected,
			RejectReason: line.RejectReason,
			Note:         line.Note,
		})
	}
	receipt, err := s.proc.CreateReceipt(ctx, receiptInput)
	if err != nil {
		return ReceiveResult{}, err
	}

	if err := s.postInventory(ctx, receipt, validated, cmd.LocationID); err != nil {
		return ReceiveResult{}, err
	}
	if err := s.proc.MarkInventoryPosted(ctx, receipt.ID); err != nil {
		return ReceiveResult{}, err
	}
	s.fin.InvalidateMatch(ctx, cmd.POID)

	// Second read on purpose: the procurement collaborator owns the
	// cumulative quantities, so the status is derived from its view, not
	// from local arithmetic.
	refreshed, err := s.proc.GetPurchaseOrder(ctx, cmd.POID)
	if err != nil {
		return ReceiveResult{}, err
	}
	poStatus := refreshed.DeriveStatus()

	result := assembleResult(receipt, refreshed, poStatus, validated)

	if poStatus == procurement.POStatusReceived && cmd.AutoCreateBill {
		match, err := s.fin.GetThreeWayMatchStatus(ctx, cmd.POID)
		if err != nil {
			return ReceiveResult{}, err
		}
		if match.FullyMatched {
			billID, err := s.generateBill(ctx, receipt, validated, refreshed.VendorID)
			if err != nil {
				return ReceiveResult{}, err
			}
			result.BillID = &billID
			result.MatchStatus = MatchStatusThreeWay
			s.metrics.BillCreated()
		} else {
			// Matching incompleteness is a weaker completion state, not
			// an error.
			result.MatchStatus = MatchStatusTwoWay
		}
		s.metrics.MatchEvaluated(string(result.MatchStatus))
	}

	s.metrics.ReceiptProcessed(string(poStatus))
	return result, nil
}

// postInventory issues one stock posting per line with a positive received
// quantity. Lines are dispatched concurrently but the workflow only
// proceeds once every posting succeeded; the first failure cancels the
// rest and fails the invocation.
func (s *Service) postInventory(ctx context.Context, receipt procurement.Receipt, validated []ValidatedLine, locationID int64) error {
	key := shared.ReceiptKey(receipt.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "receiving"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return shared.ConflictError("receiving: receipt already processed")
			}
			return err
		}
		inserted = true
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, line := range validated {
		if line.QtyReceived <= 0 {
			continue
		}
		line := line
		g.Go(func() error {
			_, err := s.inv.ReceiveInventory(gctx, inventory.ReceiveInput{
				ProductID:       line.POLine.ProductID,
				LocationID:      locationID,
				Qty:             line.QtyReceived,
				UnitCost:        line.POLine.UnitPrice,
				PurchaseOrderID: receipt.POID,
				RefID:           lineRefID(receipt.ID, line.POLine.ID),
				Note:            fmt.Sprintf("Receipt %s", receipt.Number),
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	return nil
}

// RepostInventory re-drives the stock postings for a recorded receipt
// whose downstream effects did not complete. Postings are deduplicated by
// their deterministic line reference, so lines that already landed are
// skipped.
func (s *Service) RepostInventory(ctx context.Context, receipt procurement.Receipt, locationID int64) error {
	po, err := s.proc.GetPurchaseOrder(ctx, receipt.POID)
	if err != nil {
		return err
	}
	for _, line := range receipt.Lines {
		if line.QtyReceived <= 0 {
			continue
		}
		poLine := po.Line(line.POLineID)
		if poLine == nil {
			return shared.ValidationError("poLineItemId",
				fmt.Sprintf("line %d no longer exists on purchase order %s", line.POLineID, po.Number))
		}
		_, err := s.inv.ReceiveInventory(ctx, inventory.ReceiveInput{
			ProductID:       line.ProductID,
			LocationID:      locationID,
			Qty:             line.QtyReceived,
			UnitCost:        poLine.UnitPrice,
			PurchaseOrderID: receipt.POID,
			RefID:           lineRefID(receipt.ID, line.POLineID),
			Note:            fmt.Sprintf("Receipt %s (reconciled)", receipt.Number),
		})
		if err != nil && !shared.IsConflict(err) {
			return err
		}
	}
	if err := s.proc.MarkInventoryPosted(ctx, receipt.ID); err != nil {
		return err
	}
	s.fin.InvalidateMatch(ctx, receipt.POID)
	return nil
}

func (s *Service) generateBill(ctx context.Context, receipt procurement.Receipt, validated []ValidatedLine, vendorID int64) (int64, error) {
	input := finance.CreateVendorBillInput{
		POID:     receipt.POID,
		VendorID: vendorID,
		BillDate: receipt.ReceivedAt,
		DueAt:    receipt.ReceivedAt.AddDate(0, 0, s.cfg.PaymentTermDays),
	}
	for _, line := range validated {
		if line.QtyReceived <= 0 {
			continue
		}
		account := line.POLine.LedgerAccountID
		if account == 0 {
			account = DefaultExpenseAccountID
		}
		input.Lines = append(input.Lines, finance.CreateVendorBillLineInput{
			POLineID:        line.POLine.ID,
			ProductID:       line.POLine.ProductID,
			Description:     line.POLine.Description,
			Quantity:        line.QtyReceived,
			UnitPrice:       line.POLine.UnitPrice,
			LedgerAccountID: account,
		})
	}
	bill, err := s.fin.CreateVendorBill(ctx, input)
	if err != nil {
		if shared.IsConflict(err) {
			// A bill already exists for this order; report it instead of
			// duplicating.
			existing, lookupErr := s.fin.GetBillByPO(ctx, receipt.POID)
			if lookupErr != nil {
				return 0, lookupErr
			}
			return existing.ID, nil
		}
		return 0, err
	}
	return bill.ID, nil
}

// GetReceiptsByPO forwards to procurement storage.
func (s *Service) GetReceiptsByPO(ctx context.Context, poID int64) ([]procurement.Receipt, error) {
	return s.proc.GetReceiptsByPurchaseOrder(ctx, poID)
}

// GetMatch returns the current three-way match snapshot for a PO.
func (s *Service) GetMatch(ctx context.Context, poID int64) (finance.ThreeWayMatchStatus, error) {
	return s.fin.GetThreeWayMatchStatus(ctx, poID)
}

func assembleResult(receipt procurement.Receipt, po procurement.PurchaseOrder, poStatus procurement.POStatus, validated []ValidatedLine) ReceiveResult {
	result := ReceiveResult{
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.Number,
		POID:          po.ID,
		PONumber:      po.Number,
		POStatus:      poStatus,
		MatchStatus:   MatchStatusPending,
		ReceivedAt:    receipt.ReceivedAt,
		CreatedAt:     receipt.CreatedAt,
	}
	for _, line := range validated {
		result.Lines = append(result.Lines, LineDetail{
			POLineID:    line.POLine.ID,
			ProductID:   line.POLine.ProductID,
			Description: line.POLine.Description,
			QtyOrdered:  line.POLine.QtyOrdered,
			QtyReceived: line.QtyReceived,
			QtyRejected: line.QtyRejected,
			Variance:    line.Variance,
			UnitPrice:   line.POLine.UnitPrice,
			LineTotal:   line.LineTotal,
		})
		result.TotalItemsReceived += line.QtyReceived
		result.TotalAmount += line.LineTotal
	}
	result.TotalAmount = math.Round(result.TotalAmount*100) / 100
	return result
}

func lineRefID(receiptID, poLineID int64) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("RCV:%d:%d", receiptID, poLineID))).String()
}

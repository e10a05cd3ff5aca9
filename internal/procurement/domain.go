package procurement

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft        POStatus = "DRAFT"
	POStatusSent         POStatus = "SENT"
	POStatusAcknowledged POStatus = "ACKNOWLEDGED"
	POStatusPartial      POStatus = "PARTIAL"
	POStatusReceived     POStatus = "RECEIVED"
	POStatusClosed       POStatus = "CLOSED"
	POStatusCancelled    POStatus = "CANCELLED"
)

// Receivable reports whether a delivery may be booked against the order.
func (s POStatus) Receivable() bool {
	switch s {
	case POStatusSent, POStatusAcknowledged, POStatusPartial:
		return true
	}
	return false
}

// Goods receipt statuses.
type ReceiptStatus string

const (
	ReceiptStatusDraft     ReceiptStatus = "DRAFT"
	ReceiptStatusCompleted ReceiptStatus = "COMPLETED"
	ReceiptStatusCancelled ReceiptStatus = "CANCELLED"
)

// PurchaseOrder domain model. Mutated only by receiving and billing,
// never deleted.
type PurchaseOrder struct {
	ID        int64
	Number    string
	VendorID  int64
	Status    POStatus
	Currency  string
	Subtotal  float64
	Total     float64
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []POLine
}

// POLine is one ordered product entry. QtyReceived and QtyBilled are
// cumulative across all receipts and bills for the order.
type POLine struct {
	ID              int64
	POID            int64
	ProductID       int64
	Description     string
	QtyOrdered      float64
	UnitPrice       float64
	QtyReceived     float64
	QtyBilled       float64
	LedgerAccountID int64
}

// Line returns the line with the given id, or nil.
func (po *PurchaseOrder) Line(id int64) *POLine {
	for i := range po.Lines {
		if po.Lines[i].ID == id {
			return &po.Lines[i]
		}
	}
	return nil
}

// DeriveStatus classifies the order from its cumulative line quantities:
// RECEIVED when every line is at or above its ordered quantity, PARTIAL
// once any line has a nonzero receipt.
func (po *PurchaseOrder) DeriveStatus() POStatus {
	if len(po.Lines) == 0 {
		return po.Status
	}
	complete := true
	started := false
	for _, line := range po.Lines {
		if line.QtyReceived > 0 {
			started = true
		}
		if line.QtyReceived < line.QtyOrdered {
			complete = false
		}
	}
	switch {
	case complete:
		return POStatusReceived
	case started:
		return POStatusPartial
	default:
		return po.Status
	}
}

// Receipt records one physical delivery event against a purchase order.
// Immutable once completed; a PO may have many receipts.
type Receipt struct {
	ID         int64
	Number     string
	POID       int64
	VendorID   int64
	ReceivedBy int64
	ReceivedAt time.Time
	Status     ReceiptStatus
	// InventoryPosted flips once every stock posting for this receipt
	// landed; the reconciliation job re-drives receipts where it never did.
	InventoryPosted bool
	Note            string
	CreatedAt       time.Time
	Lines           []ReceiptLine
}

// ReceiptLine references a PO line and carries received and rejected
// quantities. Rejected quantities are recorded but never posted to stock.
type ReceiptLine struct {
	ID           int64
	ReceiptID    int64
	POLineID     int64
	ProductID    int64
	QtyReceived  float64
	QtyRejected  float64
	RejectReason string
	Note         string
}

// CreateReceiptInput describes a receipt to persist. Line quantities are
// pre-validated by the receiving workflow.
type CreateReceiptInput struct {
	POID       int64
	Number     string
	ReceivedBy int64
	ReceivedAt time.Time
	Note       string
	Lines      []CreateReceiptLineInput
}

// CreateReceiptLineInput is one received line.
type CreateReceiptLineInput struct {
	POLineID     int64
	ProductID    int64
	QtyReceived  float64
	QtyRejected  float64
	RejectReason string
	Note         string
}

// Domain failures mapped onto the shared error kinds.
var (
	ErrPONotFound      = shared.NotFoundError("procurement: purchase order not found")
	ErrReceiptNotFound = shared.NotFoundError("procurement: receipt not found")
)

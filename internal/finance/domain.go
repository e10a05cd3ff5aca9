package finance

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Vendor bill lifecycle statuses.
type BillStatus string

const (
	BillStatusDraft  BillStatus = "DRAFT"
	BillStatusPosted BillStatus = "POSTED"
	BillStatusPaid   BillStatus = "PAID"
	BillStatusVoid   BillStatus = "VOID"
)

// VendorBill model. At most one bill is auto-created per fully matched
// purchase order.
type VendorBill struct {
	ID        int64
	Number    string
	VendorID  int64
	POID      int64
	BillDate  time.Time
	DueAt     time.Time
	Subtotal  float64
	Total     float64
	Status    BillStatus
	CreatedAt time.Time
	Lines     []VendorBillLine
}

// VendorBillLine carries quantity x unit price tagged with a ledger account.
type VendorBillLine struct {
	ID              int64
	BillID          int64
	POLineID        int64
	ProductID       int64
	Description     string
	Quantity        float64
	UnitPrice       float64
	LedgerAccountID int64
	Total           float64
}

// MatchVariance describes one disagreement between the purchase order,
// its receipts and its bills.
type MatchVariance struct {
	POLineID int64   `json:"poLineId"`
	Field    string  `json:"field"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

// ThreeWayMatchStatus is a derived, read-only snapshot keyed by purchase
// order. It is computed on demand and never stored; redis only caches it
// briefly.
type ThreeWayMatchStatus struct {
	POID           int64           `json:"poId"`
	POMatched      bool            `json:"poMatched"`
	ReceiptMatched bool            `json:"receiptMatched"`
	BillMatched    bool            `json:"billMatched"`
	FullyMatched   bool            `json:"fullyMatched"`
	Variances      []MatchVariance `json:"variances,omitempty"`
	EvaluatedAt    time.Time       `json:"evaluatedAt"`
}

// CreateVendorBillInput describes a bill to create from received lines.
type CreateVendorBillInput struct {
	POID      int64
	VendorID  int64
	Number    string
	BillDate  time.Time
	DueAt     time.Time
	CreatedBy int64
	Lines     []CreateVendorBillLineInput
}

// CreateVendorBillLineInput is one billable line.
type CreateVendorBillLineInput struct {
	POLineID        int64
	ProductID       int64
	Description     string
	Quantity        float64
	UnitPrice       float64
	LedgerAccountID int64
}

// Domain failures.
var (
	ErrBillNotFound  = shared.NotFoundError("finance: vendor bill not found")
	ErrAlreadyBilled = shared.ConflictError("finance: bill already exists for purchase order")
)

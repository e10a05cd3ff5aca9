package receiving

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/procurement"
)

// MatchStatus reports how far the three-way reconciliation got for the
// receipt being processed. 2-WAY means the receipt is recorded against a
// valid purchase order but the financial triple-match is incomplete;
// 3-WAY means a vendor bill exists for the fully matched order.
type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "PENDING"
	MatchStatusTwoWay   MatchStatus = "2-WAY"
	MatchStatusThreeWay MatchStatus = "3-WAY"
)

// ReceiveCommand is the caller-facing input for one delivery event.
// ReceiptNumber is optional; when the caller supplies one it doubles as
// the idempotency key, so resubmitting the same delivery is rejected
// instead of double-posting. Left empty, the server generates a number.
type ReceiveCommand struct {
	POID           int64
	ReceivedBy     int64
	ReceivedAt     time.Time
	LocationID     int64
	ReceiptNumber  string
	Lines          []ReceiveLineCommand
	Note           string
	AutoCreateBill bool
}

// ReceiveLineCommand proposes received and rejected quantities for one
// PO line.
type ReceiveLineCommand struct {
	POLineID     int64
	QtyReceived  float64
	QtyRejected  float64
	RejectReason string
	Note         string
}

// ValidatedLine is the enriched output of validation: the referenced PO
// line plus the accepted quantities, variance and line total.
type ValidatedLine struct {
	POLine       procurement.POLine
	QtyReceived  float64
	QtyRejected  float64
	RejectReason string
	Note         string
	Variance     float64
	LineTotal    float64
}

// LineDetail is the per-line slice of the assembled result.
type LineDetail struct {
	POLineID    int64   `json:"poLineId"`
	ProductID   int64   `json:"productId"`
	Description string  `json:"description"`
	QtyOrdered  float64 `json:"qtyOrdered"`
	QtyReceived float64 `json:"qtyReceived"`
	QtyRejected float64 `json:"qtyRejected"`
	Variance    float64 `json:"variance"`
	UnitPrice   float64 `json:"unitPrice"`
	LineTotal   float64 `json:"lineTotal"`
}

// ReceiveResult is the assembled outcome of a successful workflow run.
type ReceiveResult struct {
	ReceiptID          int64                `json:"receiptId"`
	ReceiptNumber      string               `json:"receiptNumber"`
	POID               int64                `json:"poId"`
	PONumber           string               `json:"poNumber"`
	POStatus           procurement.POStatus `json:"poStatus"`
	Lines              []LineDetail         `json:"lines"`
	TotalItemsReceived float64              `json:"totalItemsReceived"`
	TotalAmount        float64              `json:"totalAmount"`
	BillID             *int64               `json:"apBillId,omitempty"`
	MatchStatus        MatchStatus          `json:"matchStatus"`
	ReceivedAt         time.Time            `json:"receivedAt"`
	CreatedAt          time.Time            `json:"createdAt"`
}

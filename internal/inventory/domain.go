package inventory

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeReceive represents an inbound movement from a goods receipt.
	MovementTypeReceive MovementType = "RECEIVE"
	// MovementTypeAdjust indicates manual adjustments.
	MovementTypeAdjust MovementType = "ADJUST"
)

// Movement models one stock mutation with its traceability reference.
type Movement struct {
	ID         int64
	Code       string
	Type       MovementType
	LocationID int64
	ProductID  int64
	Qty        float64
	UnitCost   float64
	RefModule  string
	RefID      string
	Note       string
	PostedAt   time.Time
}

// Balance summarises on-hand stock per product and location. AvgCost is
// the weighted-average unit cost blended across receipts.
type Balance struct {
	LocationID int64
	ProductID  int64
	Qty        float64
	AvgCost    float64
	UpdatedAt  time.Time
}

// ReceiveInput describes an inbound posting issued by the receiving
// workflow: one per received line, carrying the PO line price as the
// weighted-average cost input.
type ReceiveInput struct {
	ProductID       int64
	LocationID      int64
	Qty             float64
	UnitCost        float64
	PurchaseOrderID int64
	RefID           string
	Note            string
}

// StockEntry reports the post-movement position for the posted product.
type StockEntry struct {
	MovementCode string
	ProductID    int64
	LocationID   int64
	QtyIn        float64
	BalanceQty   float64
	UnitCost     float64
	BalanceCost  float64
	PostedAt     time.Time
}

// Validation failures for postings.
var (
	ErrInvalidQuantity = shared.ValidationError("quantity", "inventory: quantity must be positive")
	ErrInvalidUnitCost = shared.ValidationError("unitCost", "inventory: unit cost must be >= 0")
)

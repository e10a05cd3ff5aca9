package receiving

import (
	"fmt"
	"math"

	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// DefaultOverReceiptTolerance is the fraction by which a received quantity
// may exceed the ordered quantity. Exactly at the bound passes; anything
// above fails.
const DefaultOverReceiptTolerance = 0.10

// ValidateReceive checks the purchase order is receivable and every
// proposed quantity respects the over-receipt tolerance, returning the
// enriched line list. Pure: no I/O, no mutation of po.
//
// Zero and partial quantities are always acceptable; partial delivery is
// the normal case.
func ValidateReceive(po *procurement.PurchaseOrder, lines []ReceiveLineCommand, tolerance float64) ([]ValidatedLine, error) {
	if tolerance <= 0 {
		tolerance = DefaultOverReceiptTolerance
	}
	if !po.Status.Receivable() {
		return nil, shared.ValidationError("poStatus",
			fmt.Sprintf("purchase order %s is not receivable in status %s", po.Number, po.Status))
	}
	if len(lines) == 0 {
		return nil, shared.ValidationError("lineItems", "at least one line is required")
	}

	validated := make([]ValidatedLine, 0, len(lines))
	for _, in := range lines {
		poLine := po.Line(in.POLineID)
		if poLine == nil {
			return nil, shared.ValidationError("poLineItemId",
				fmt.Sprintf("line %d does not exist on purchase order %s", in.POLineID, po.Number))
		}
		if in.QtyReceived < 0 {
			return nil, shared.ValidationError("quantityReceived", "received quantity must not be negative")
		}
		if in.QtyRejected < 0 {
			return nil, shared.ValidationError("quantityRejected", "rejected quantity must not be negative")
		}
		if over := in.QtyReceived - poLine.QtyOrdered; over > poLine.QtyOrdered*tolerance {
			return nil, shared.ValidationError("quantityReceived",
				fmt.Sprintf("received %.2f exceeds ordered %.2f beyond %.0f%% tolerance",
					in.QtyReceived, poLine.QtyOrdered, tolerance*100))
		}
		validated = append(validated, ValidatedLine{
			POLine:       *poLine,
			QtyReceived:  in.QtyReceived,
			QtyRejected:  in.QtyRejected,
			RejectReason: in.RejectReason,
			Note:         in.Note,
			Variance:     in.QtyReceived - poLine.QtyOrdered,
			LineTotal:    math.Round(in.QtyReceived*poLine.UnitPrice*100) / 100,
		})
	}
	return validated, nil
}

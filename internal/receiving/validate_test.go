package receiving

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func testPO() *procurement.PurchaseOrder {
	return &procurement.PurchaseOrder{
		ID:       1,
		Number:   "PO-1001",
		VendorID: 7,
		Status:   procurement.POStatusSent,
		Lines: []procurement.POLine{
			{ID: 11, POID: 1, ProductID: 101, Description: "Laptop", QtyOrdered: 10, UnitPrice: 1200},
		},
	}
}

func TestValidateReceiveAcceptsExactQuantity(t *testing.T) {
	lines, err := ValidateReceive(testPO(), []ReceiveLineCommand{
		{POLineID: 11, QtyReceived: 10},
	}, 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 0.0, lines[0].Variance)
	require.Equal(t, 12000.0, lines[0].LineTotal)
}

func TestValidateReceiveAcceptsPartial(t *testing.T) {
	lines, err := ValidateReceive(testPO(), []ReceiveLineCommand{
		{POLineID: 11, QtyReceived: 6},
	}, 0)
	require.NoError(t, err)
	require.Equal(t, -4.0, lines[0].Variance)
}

func TestValidateReceiveToleranceBoundary(t *testing.T) {
	// Exactly 10% over passes.
	lines, err := ValidateReceive(testPO(), []ReceiveLineCommand{
		{POLineID: 11, QtyReceived: 11},
	}, 0.10)
	require.NoError(t, err)
	require.Equal(t, 1.0, lines[0].Variance)

	// Anything above fails.
	_, err = ValidateReceive(testPO(), []ReceiveLineCommand{
		{POLineID: 11, QtyReceived: 11.01},
	}, 0.10)
	require.True(t, shared.IsValidation(err))
	require.Equal(t, "quantityReceived", shared.FieldOf(err))
}

func TestValidateReceiveRejectsNonReceivableStatus(t *testing.T) {
	for _, status := range []procurement.POStatus{
		procurement.POStatusDraft,
		procurement.POStatusReceived,
		procurement.POStatusClosed,
		procurement.POStatusCancelled,
	} {
		po := testPO()
		po.Status = status
		_, err := ValidateReceive(po, []ReceiveLineCommand{{POLineID: 11, QtyReceived: 1}}, 0)
		require.True(t, shared.IsValidation(err), "status %s", status)
		require.Equal(t, "poStatus", shared.FieldOf(err))
	}
}

func TestValidateReceiveRejectsUnknownLine(t *testing.T) {
	_, err := ValidateReceive(testPO(), []ReceiveLineCommand{{POLineID: 99, QtyReceived: 1}}, 0)
	require.True(t, shared.IsValidation(err))
	require.Equal(t, "poLineItemId", shared.FieldOf(err))
}

func TestValidateReceiveRejectsEmptyAndNegative(t *testing.T) {
	_, err := ValidateReceive(testPO(), nil, 0)
	require.Equal(t, "lineItems", shared.FieldOf(err))

	_, err = ValidateReceive(testPO(), []ReceiveLineCommand{{POLineID: 11, QtyReceived: -1}}, 0)
	require.Equal(t, "quantityReceived", shared.FieldOf(err))

	_, err = ValidateReceive(testPO(), []ReceiveLineCommand{{POLineID: 11, QtyRejected: -1}}, 0)
	require.Equal(t, "quantityRejected", shared.FieldOf(err))
}

func TestValidateReceiveDoesNotMutateOrder(t *testing.T) {
	po := testPO()
	_, err := ValidateReceive(po, []ReceiveLineCommand{{POLineID: 11, QtyReceived: 4}}, 0)
	require.NoError(t, err)
	require.Equal(t, 0.0, po.Lines[0].QtyReceived)
	require.Equal(t, procurement.POStatusSent, po.Status)
}

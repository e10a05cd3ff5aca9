package finance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicateBill(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_vendor_bills_po_open"}
	require.True(t, isDuplicateBill(dup))
	// pgx surfaces constraint violations wrapped; detection must unwrap.
	require.True(t, isDuplicateBill(fmt.Errorf("insert bill: %w", dup)))
	require.True(t, isDuplicateBill(&pgconn.PgError{Code: "23505", ConstraintName: "uq_vendor_bills_number"}))

	require.False(t, isDuplicateBill(&pgconn.PgError{Code: "23503", ConstraintName: "fk_vendor_bills_po"}))
	require.False(t, isDuplicateBill(&pgconn.PgError{Code: "23505", ConstraintName: "uq_stock_movements_ref"}))
	require.False(t, isDuplicateBill(errors.New("connection reset")))
	require.False(t, isDuplicateBill(nil))
}

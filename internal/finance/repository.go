package finance

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// MatchLineFact carries the per-line quantities the match evaluation needs.
type MatchLineFact struct {
	POLineID    int64
	QtyOrdered  float64
	QtyReceived float64
	QtyBilled   float64
	UnitPrice   float64
}

// MatchFacts aggregates the three records compared by the evaluator.
type MatchFacts struct {
	POID         int64
	POExists     bool
	Lines        []MatchLineFact
	ReceiptCount int
	BillCount    int
}

// Repository provides PostgreSQL backed persistence for vendor bills and
// read access to the match inputs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertBill(ctx context.Context, bill VendorBill) (int64, error)
	InsertBillLine(ctx context.Context, line VendorBillLine) (int64, error)
	AddLineBilledQty(ctx context.Context, poLineID int64, qty float64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetMatchFacts reads the quantities from the purchase order, its receipts
// and its bills in one pass.
func (r *Repository) GetMatchFacts(ctx context.Context, poID int64) (MatchFacts, error) {
	facts := MatchFacts{POID: poID}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE id = $1)`, poID).Scan(&exists); err != nil {
		return MatchFacts{}, err
	}
	facts.POExists = exists
	if !exists {
		return facts, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, qty_ordered, qty_received, qty_billed, unit_price
		FROM po_lines WHERE po_id = $1 ORDER BY id`, poID)
	if err != nil {
		return MatchFacts{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var fact MatchLineFact
		if err := rows.Scan(&fact.POLineID, &fact.QtyOrdered, &fact.QtyReceived, &fact.QtyBilled, &fact.UnitPrice); err != nil {
			return MatchFacts{}, err
		}
		facts.Lines = append(facts.Lines, fact)
	}
	if err := rows.Err(); err != nil {
		return MatchFacts{}, err
	}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM receipts WHERE po_id = $1 AND status = 'COMPLETED'`, poID).Scan(&facts.ReceiptCount); err != nil {
		return MatchFacts{}, err
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vendor_bills WHERE po_id = $1 AND status <> 'VOID'`, poID).Scan(&facts.BillCount); err != nil {
		return MatchFacts{}, err
	}
	return facts, nil
}

// CountBillsByPO counts non-void bills referencing the purchase order.
func (r *Repository) CountBillsByPO(ctx context.Context, poID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vendor_bills WHERE po_id = $1 AND status <> 'VOID'`, poID).Scan(&count)
	return count, err
}

// GetLatestBillByPO returns the most recent bill for the order.
func (r *Repository) GetLatestBillByPO(ctx context.Context, poID int64) (VendorBill, error) {
	var bill VendorBill
	err := r.pool.QueryRow(ctx, `
		SELECT id, number, vendor_id, po_id, bill_date, due_at, subtotal, total, status, created_at
		FROM vendor_bills WHERE po_id = $1 AND status <> 'VOID'
		ORDER BY created_at DESC, id DESC LIMIT 1`, poID).Scan(
		&bill.ID, &bill.Number, &bill.VendorID, &bill.POID, &bill.BillDate,
		&bill.DueAt, &bill.Subtotal, &bill.Total, &bill.Status, &bill.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VendorBill{}, ErrBillNotFound
		}
		return VendorBill{}, err
	}
	return bill, nil
}

func (t *txRepo) InsertBill(ctx context.Context, bill VendorBill) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO vendor_bills (number, vendor_id, po_id, bill_date, due_at, subtotal, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id`,
		bill.Number, bill.VendorID, bill.POID, bill.BillDate, bill.DueAt,
		bill.Subtotal, bill.Total, bill.Status).Scan(&id)
	if err != nil {
		if isDuplicateBill(err) {
			return 0, ErrAlreadyBilled
		}
		return 0, err
	}
	return id, nil
}

// isDuplicateBill reports whether an insert collided with the one-open-bill
// guarantee: the partial unique index on po_id over non-void bills, or the
// bill number key.
func isDuplicateBill(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return pgErr.ConstraintName == "uq_vendor_bills_po_open" || pgErr.ConstraintName == "uq_vendor_bills_number"
}

func (t *txRepo) InsertBillLine(ctx context.Context, line VendorBillLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO vendor_bill_lines (bill_id, po_line_id, product_id, description, quantity, unit_price, ledger_account_id, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		line.BillID, line.POLineID, line.ProductID, line.Description,
		line.Quantity, line.UnitPrice, line.LedgerAccountID, line.Total).Scan(&id)
	return id, err
}

func (t *txRepo) AddLineBilledQty(ctx context.Context, poLineID int64, qty float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE po_lines SET qty_billed = qty_billed + $2 WHERE id = $1`, poLineID, qty)
	return err
}

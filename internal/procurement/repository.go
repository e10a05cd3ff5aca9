package procurement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for purchase orders
// and goods receipts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error)
	InsertReceiptLine(ctx context.Context, line ReceiptLine) (int64, error)
	AddLineReceivedQty(ctx context.Context, poLineID int64, qty float64) error
	GetPOLines(ctx context.Context, poID int64) ([]POLine, error)
	UpdatePOStatus(ctx context.Context, poID int64, status POStatus) error
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

// GetPurchaseOrder returns the order header with its lines.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := r.pool.QueryRow(ctx, `
		SELECT id, number, vendor_id, status, currency, subtotal, total, note, created_at, updated_at
		FROM purchase_orders WHERE id = $1`, id).Scan(
		&po.ID, &po.Number, &po.VendorID, &po.Status, &po.Currency,
		&po.Subtotal, &po.Total, &po.Note, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrPONotFound
		}
		return PurchaseOrder{}, err
	}
	lines, err := scanPOLines(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines = lines
	return po, nil
}

// ListReceiptsByPO returns all receipts recorded against a purchase order,
// newest first, with their lines.
func (r *Repository) ListReceiptsByPO(ctx context.Context, poID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, number, po_id, vendor_id, received_by, received_at, status, inventory_posted, note, created_at
		FROM receipts WHERE po_id = $1 ORDER BY received_at DESC, id DESC`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var rec Receipt
		if err := rows.Scan(&rec.ID, &rec.Number, &rec.POID, &rec.VendorID, &rec.ReceivedBy,
			&rec.ReceivedAt, &rec.Status, &rec.InventoryPosted, &rec.Note, &rec.CreatedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range receipts {
		lines, err := r.getReceiptLines(ctx, receipts[i].ID)
		if err != nil {
			return nil, err
		}
		receipts[i].Lines = lines
	}
	return receipts, nil
}

// GetReceipt returns a receipt with its lines.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	var rec Receipt
	err := r.pool.QueryRow(ctx, `
		SELECT id, number, po_id, vendor_id, received_by, received_at, status, inventory_posted, note, created_at
		FROM receipts WHERE id = $1`, id).Scan(
		&rec.ID, &rec.Number, &rec.POID, &rec.VendorID, &rec.ReceivedBy,
		&rec.ReceivedAt, &rec.Status, &rec.InventoryPosted, &rec.Note, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrReceiptNotFound
		}
		return Receipt{}, err
	}
	lines, err := r.getReceiptLines(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	rec.Lines = lines
	return rec, nil
}

// MarkInventoryPosted flags a receipt once every stock posting succeeded.
func (r *Repository) MarkInventoryPosted(ctx context.Context, receiptID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE receipts SET inventory_posted = TRUE WHERE id = $1`, receiptID)
	return err
}

// ListUnpostedReceipts returns completed receipts whose inventory postings
// did not all land, oldest first. Used by the reconciliation job.
func (r *Repository) ListUnpostedReceipts(ctx context.Context, olderThan time.Time, limit int) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, number, po_id, vendor_id, received_by, received_at, status, inventory_posted, note, created_at
		FROM receipts
		WHERE status = $1 AND inventory_posted = FALSE AND created_at < $2
		ORDER BY created_at ASC LIMIT $3`, ReceiptStatusCompleted, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var rec Receipt
		if err := rows.Scan(&rec.ID, &rec.Number, &rec.POID, &rec.VendorID, &rec.ReceivedBy,
			&rec.ReceivedAt, &rec.Status, &rec.InventoryPosted, &rec.Note, &rec.CreatedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range receipts {
		lines, err := r.getReceiptLines(ctx, receipts[i].ID)
		if err != nil {
			return nil, err
		}
		receipts[i].Lines = lines
	}
	return receipts, nil
}

func (r *Repository) getReceiptLines(ctx context.Context, receiptID int64) ([]ReceiptLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, receipt_id, po_line_id, product_id, qty_received, qty_rejected, reject_reason, note
		FROM receipt_lines WHERE receipt_id = $1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ReceiptLine
	for rows.Next() {
		var line ReceiptLine
		if err := rows.Scan(&line.ID, &line.ReceiptID, &line.POLineID, &line.ProductID,
			&line.QtyReceived, &line.QtyRejected, &line.RejectReason, &line.Note); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanPOLines(ctx context.Context, q queryer, poID int64) ([]POLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, po_id, product_id, description, qty_ordered, unit_price, qty_received, qty_billed, ledger_account_id
		FROM po_lines WHERE po_id = $1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.ID, &line.POID, &line.ProductID, &line.Description,
			&line.QtyOrdered, &line.UnitPrice, &line.QtyReceived, &line.QtyBilled, &line.LedgerAccountID); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txRepo) InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO receipts (number, po_id, vendor_id, received_by, received_at, status, inventory_posted, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, NOW())
		RETURNING id, created_at`,
		receipt.Number, receipt.POID, receipt.VendorID, receipt.ReceivedBy,
		receipt.ReceivedAt, receipt.Status, receipt.Note).Scan(&receipt.ID, &receipt.CreatedAt)
	return receipt, err
}

func (t *txRepo) InsertReceiptLine(ctx context.Context, line ReceiptLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO receipt_lines (receipt_id, po_line_id, product_id, qty_received, qty_rejected, reject_reason, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		line.ReceiptID, line.POLineID, line.ProductID, line.QtyReceived,
		line.QtyRejected, line.RejectReason, line.Note).Scan(&id)
	return id, err
}

func (t *txRepo) AddLineReceivedQty(ctx context.Context, poLineID int64, qty float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE po_lines SET qty_received = qty_received + $2 WHERE id = $1`, poLineID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPONotFound
	}
	return nil
}

func (t *txRepo) GetPOLines(ctx context.Context, poID int64) ([]POLine, error) {
	return scanPOLines(ctx, t.tx, poID)
}

func (t *txRepo) UpdatePOStatus(ctx context.Context, poID int64, status POStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`, poID, status)
	return err
}

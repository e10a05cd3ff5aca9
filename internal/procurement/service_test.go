package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryProcRepo struct {
	pos       map[int64]PurchaseOrder
	receipts  map[int64]Receipt
	nextID    int64
	createdAt time.Time
}

type memoryProcTx struct {
	repo *memoryProcRepo
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		pos:       make(map[int64]PurchaseOrder),
		receipts:  make(map[int64]Receipt),
		createdAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryProcTx{repo: r})
}

func (r *memoryProcRepo) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrPONotFound
	}
	po.Lines = append([]POLine(nil), po.Lines...)
	return po, nil
}

func (r *memoryProcRepo) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	rec, ok := r.receipts[id]
	if !ok {
		return Receipt{}, ErrReceiptNotFound
	}
	return rec, nil
}

func (r *memoryProcRepo) ListReceiptsByPO(ctx context.Context, poID int64) ([]Receipt, error) {
	var out []Receipt
	for _, rec := range r.receipts {
		if rec.POID == poID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryProcRepo) MarkInventoryPosted(ctx context.Context, receiptID int64) error {
	rec, ok := r.receipts[receiptID]
	if !ok {
		return ErrReceiptNotFound
	}
	rec.InventoryPosted = true
	r.receipts[receiptID] = rec
	return nil
}

func (r *memoryProcRepo) ListUnpostedReceipts(ctx context.Context, olderThan time.Time, limit int) ([]Receipt, error) {
	var out []Receipt
	for _, rec := range r.receipts {
		if rec.Status == ReceiptStatusCompleted && !rec.InventoryPosted {
			out = append(out, rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (tx *memoryProcTx) next() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryProcTx) InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error) {
	receipt.ID = tx.next()
	receipt.CreatedAt = tx.repo.createdAt
	tx.repo.receipts[receipt.ID] = receipt
	return receipt, nil
}

func (tx *memoryProcTx) InsertReceiptLine(ctx context.Context, line ReceiptLine) (int64, error) {
	id := tx.next()
	line.ID = id
	rec := tx.repo.receipts[line.ReceiptID]
	rec.Lines = append(rec.Lines, line)
	tx.repo.receipts[line.ReceiptID] = rec
	return id, nil
}

func (tx *memoryProcTx) AddLineReceivedQty(ctx context.Context, poLineID int64, qty float64) error {
	for poID, po := range tx.repo.pos {
		for i := range po.Lines {
			if po.Lines[i].ID == poLineID {
				po.Lines[i].QtyReceived += qty
				tx.repo.pos[poID] = po
				return nil
			}
		}
	}
	return ErrPONotFound
}

func (tx *memoryProcTx) GetPOLines(ctx context.Context, poID int64) ([]POLine, error) {
	po, ok := tx.repo.pos[poID]
	if !ok {
		return nil, ErrPONotFound
	}
	return append([]POLine(nil), po.Lines...), nil
}

func (tx *memoryProcTx) UpdatePOStatus(ctx context.Context, poID int64, status POStatus) error {
	po, ok := tx.repo.pos[poID]
	if !ok {
		return ErrPONotFound
	}
	po.Status = status
	tx.repo.pos[poID] = po
	return nil
}

func seedPO(repo *memoryProcRepo) PurchaseOrder {
	po := PurchaseOrder{
		ID:       1,
		Number:   "PO-1001",
		VendorID: 7,
		Status:   POStatusSent,
		Currency: "USD",
		Lines: []POLine{
			{ID: 11, POID: 1, ProductID: 101, Description: "Laptop", QtyOrdered: 5, UnitPrice: 1200},
			{ID: 12, POID: 1, ProductID: 102, Description: "Dock", QtyOrdered: 10, UnitPrice: 150},
		},
	}
	repo.pos[po.ID] = po
	return po
}

func TestCreateReceiptAdvancesQuantitiesAndStatus(t *testing.T) {
	repo := newMemoryProcRepo()
	seedPO(repo)
	svc := NewService(repo, nil)

	receipt, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID:       1,
		ReceivedBy: 3,
		Lines: []CreateReceiptLineInput{
			{POLineID: 11, ProductID: 101, QtyReceived: 5},
			{POLineID: 12, ProductID: 102, QtyReceived: 4},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, receipt.ID)
	require.Equal(t, ReceiptStatusCompleted, receipt.Status)
	require.Equal(t, int64(7), receipt.VendorID)
	require.Contains(t, receipt.Number, "RCV-")
	// The insert assigns created_at; the returned receipt must carry it.
	require.Equal(t, repo.createdAt, receipt.CreatedAt)
	require.Len(t, receipt.Lines, 2)

	po, err := svc.GetPurchaseOrder(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, POStatusPartial, po.Status)
	require.Equal(t, 5.0, po.Lines[0].QtyReceived)
	require.Equal(t, 4.0, po.Lines[1].QtyReceived)
}

func TestCreateReceiptCompletesOrder(t *testing.T) {
	repo := newMemoryProcRepo()
	seedPO(repo)
	svc := NewService(repo, nil)

	_, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID: 1,
		Lines: []CreateReceiptLineInput{
			{POLineID: 11, ProductID: 101, QtyReceived: 5},
			{POLineID: 12, ProductID: 102, QtyReceived: 10},
		},
	})
	require.NoError(t, err)

	po, err := svc.GetPurchaseOrder(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, po.Status)
}

func TestCreateReceiptRequiresLines(t *testing.T) {
	repo := newMemoryProcRepo()
	seedPO(repo)
	svc := NewService(repo, nil)

	_, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{POID: 1})
	require.True(t, shared.IsValidation(err))
}

func TestGetReceiptsByPurchaseOrderUnknownPO(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil)

	_, err := svc.GetReceiptsByPurchaseOrder(context.Background(), 99)
	require.ErrorIs(t, err, ErrPONotFound)
}

func TestListUnpostedReceipts(t *testing.T) {
	repo := newMemoryProcRepo()
	seedPO(repo)
	svc := NewService(repo, nil)

	receipt, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		POID:  1,
		Lines: []CreateReceiptLineInput{{POLineID: 11, ProductID: 101, QtyReceived: 2}},
	})
	require.NoError(t, err)

	pending, err := svc.ListUnpostedReceipts(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, svc.MarkInventoryPosted(context.Background(), receipt.ID))
	pending, err = svc.ListUnpostedReceipts(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	require.Empty(t, pending)
}

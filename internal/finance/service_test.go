package finance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryBillRepo struct {
	facts  MatchFacts
	bills  map[int64]VendorBill
	nextID int64
}

func newMemoryBillRepo(facts MatchFacts) *memoryBillRepo {
	return &memoryBillRepo{facts: facts, bills: make(map[int64]VendorBill)}
}

func (r *memoryBillRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryBillRepo) GetMatchFacts(ctx context.Context, poID int64) (MatchFacts, error) {
	facts := r.facts
	facts.BillCount = 0
	for _, bill := range r.bills {
		if bill.POID == poID && bill.Status != BillStatusVoid {
			facts.BillCount++
		}
	}
	return facts, nil
}

func (r *memoryBillRepo) CountBillsByPO(ctx context.Context, poID int64) (int, error) {
	count := 0
	for _, bill := range r.bills {
		if bill.POID == poID && bill.Status != BillStatusVoid {
			count++
		}
	}
	return count, nil
}

func (r *memoryBillRepo) GetLatestBillByPO(ctx context.Context, poID int64) (VendorBill, error) {
	var latest VendorBill
	for _, bill := range r.bills {
		if bill.POID == poID && bill.ID > latest.ID {
			latest = bill
		}
	}
	if latest.ID == 0 {
		return VendorBill{}, ErrBillNotFound
	}
	return latest, nil
}

func (r *memoryBillRepo) InsertBill(ctx context.Context, bill VendorBill) (int64, error) {
	r.nextID++
	bill.ID = r.nextID
	r.bills[bill.ID] = bill
	return bill.ID, nil
}

func (r *memoryBillRepo) InsertBillLine(ctx context.Context, line VendorBillLine) (int64, error) {
	r.nextID++
	bill := r.bills[line.BillID]
	line.ID = r.nextID
	bill.Lines = append(bill.Lines, line)
	r.bills[line.BillID] = bill
	return line.ID, nil
}

func (r *memoryBillRepo) AddLineBilledQty(ctx context.Context, poLineID int64, qty float64) error {
	for i := range r.facts.Lines {
		if r.facts.Lines[i].POLineID == poLineID {
			r.facts.Lines[i].QtyBilled += qty
		}
	}
	return nil
}

func fullyReceivedFacts() MatchFacts {
	return MatchFacts{
		POID:     1,
		POExists: true,
		Lines: []MatchLineFact{
			{POLineID: 11, QtyOrdered: 5, QtyReceived: 5, UnitPrice: 1200},
		},
		ReceiptCount: 1,
	}
}

func TestMatchFullyReceived(t *testing.T) {
	repo := newMemoryBillRepo(fullyReceivedFacts())
	svc := NewService(repo, nil, nil)

	status, err := svc.GetThreeWayMatchStatus(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, status.POMatched)
	require.True(t, status.ReceiptMatched)
	require.True(t, status.FullyMatched)
	require.False(t, status.BillMatched)
	require.Empty(t, status.Variances)
}

func TestMatchPartialReceipt(t *testing.T) {
	facts := fullyReceivedFacts()
	facts.Lines[0].QtyReceived = 3
	repo := newMemoryBillRepo(facts)
	svc := NewService(repo, nil, nil)

	status, err := svc.GetThreeWayMatchStatus(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, status.ReceiptMatched)
	require.False(t, status.FullyMatched)
	require.Len(t, status.Variances, 1)
	require.Equal(t, "quantityReceived", status.Variances[0].Field)
	require.Equal(t, 5.0, status.Variances[0].Expected)
	require.Equal(t, 3.0, status.Variances[0].Actual)
}

func TestMatchNoReceiptsIsUnmatched(t *testing.T) {
	facts := fullyReceivedFacts()
	facts.ReceiptCount = 0
	facts.Lines[0].QtyReceived = 0
	repo := newMemoryBillRepo(facts)
	svc := NewService(repo, nil, nil)

	status, err := svc.GetThreeWayMatchStatus(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, status.FullyMatched)
	require.False(t, status.POMatched)
}

func TestMatchUnknownPO(t *testing.T) {
	repo := newMemoryBillRepo(MatchFacts{POID: 9})
	svc := NewService(repo, nil, nil)

	_, err := svc.GetThreeWayMatchStatus(context.Background(), 9)
	require.True(t, shared.IsNotFound(err))
}

func TestCreateVendorBillComputesTotals(t *testing.T) {
	repo := newMemoryBillRepo(fullyReceivedFacts())
	svc := NewService(repo, nil, nil)

	bill, err := svc.CreateVendorBill(context.Background(), CreateVendorBillInput{
		POID:     1,
		VendorID: 7,
		BillDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Lines: []CreateVendorBillLineInput{
			{POLineID: 11, ProductID: 101, Quantity: 5, UnitPrice: 1200, LedgerAccountID: 6000},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 6000.0, bill.Total)
	require.Equal(t, BillStatusDraft, bill.Status)
	require.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), bill.DueAt)
	require.Len(t, bill.Lines, 1)
	require.Equal(t, 5.0, repo.facts.Lines[0].QtyBilled)

	status, err := svc.GetThreeWayMatchStatus(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, status.BillMatched)
}

func TestCreateVendorBillRejectsDuplicate(t *testing.T) {
	repo := newMemoryBillRepo(fullyReceivedFacts())
	svc := NewService(repo, nil, nil)

	input := CreateVendorBillInput{
		POID:     1,
		VendorID: 7,
		BillDate: time.Now(),
		Lines: []CreateVendorBillLineInput{
			{POLineID: 11, ProductID: 101, Quantity: 5, UnitPrice: 1200},
		},
	}
	first, err := svc.CreateVendorBill(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.CreateVendorBill(context.Background(), input)
	require.ErrorIs(t, err, ErrAlreadyBilled)

	existing, err := svc.GetBillByPO(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, first.ID, existing.ID)
}

func TestMatchCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	repo := newMemoryBillRepo(fullyReceivedFacts())
	svc := NewService(repo, cache, nil)

	first, err := svc.GetThreeWayMatchStatus(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, first.FullyMatched)

	// A cached snapshot is served until invalidated.
	repo.facts.Lines[0].QtyReceived = 0
	cached, err := svc.GetThreeWayMatchStatus(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, cached.FullyMatched)

	svc.InvalidateMatch(context.Background(), 1)
	fresh, err := svc.GetThreeWayMatchStatus(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, fresh.FullyMatched)
}

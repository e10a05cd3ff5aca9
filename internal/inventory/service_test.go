package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type balanceKey struct {
	locationID int64
	productID  int64
}

type memoryStockRepo struct {
	balances  map[balanceKey]Balance
	movements []Movement
	nextID    int64
}

func newMemoryStockRepo() *memoryStockRepo {
	return &memoryStockRepo{balances: make(map[balanceKey]Balance)}
}

func (r *memoryStockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryStockRepo) GetBalance(ctx context.Context, locationID, productID int64) (Balance, error) {
	b, ok := r.balances[balanceKey{locationID, productID}]
	if !ok {
		return Balance{}, ErrBalanceNotFound
	}
	return b, nil
}

func (r *memoryStockRepo) HasMovementRef(ctx context.Context, refID string) (bool, error) {
	for _, m := range r.movements {
		if m.RefID == refID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryStockRepo) GetBalanceForUpdate(ctx context.Context, locationID, productID int64) (Balance, error) {
	return r.GetBalance(ctx, locationID, productID)
}

func (r *memoryStockRepo) UpsertBalance(ctx context.Context, balance Balance) error {
	r.balances[balanceKey{balance.LocationID, balance.ProductID}] = balance
	return nil
}

func (r *memoryStockRepo) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	r.nextID++
	movement.ID = r.nextID
	r.movements = append(r.movements, movement)
	return movement.ID, nil
}

func TestReceiveInventoryCreatesBalance(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, nil)

	entry, err := svc.ReceiveInventory(context.Background(), ReceiveInput{
		ProductID: 101, LocationID: 1, Qty: 10, UnitCost: 100, PurchaseOrderID: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 10.0, entry.BalanceQty)
	require.Equal(t, 100.0, entry.BalanceCost)
	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementTypeReceive, repo.movements[0].Type)
	require.Equal(t, "PROCUREMENT", repo.movements[0].RefModule)
}

func TestReceiveInventoryBlendsAverageCost(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, nil)

	_, err := svc.ReceiveInventory(context.Background(), ReceiveInput{
		ProductID: 101, LocationID: 1, Qty: 10, UnitCost: 100,
	})
	require.NoError(t, err)

	entry, err := svc.ReceiveInventory(context.Background(), ReceiveInput{
		ProductID: 101, LocationID: 1, Qty: 5, UnitCost: 130,
	})
	require.NoError(t, err)
	require.Equal(t, 15.0, entry.BalanceQty)
	require.InDelta(t, 110.0, entry.BalanceCost, 1e-9)

	balance, err := svc.GetBalance(context.Background(), 1, 101)
	require.NoError(t, err)
	require.InDelta(t, 110.0, balance.AvgCost, 1e-9)
}

func TestReceiveInventoryRejectsBadInput(t *testing.T) {
	svc := NewService(newMemoryStockRepo(), nil)

	_, err := svc.ReceiveInventory(context.Background(), ReceiveInput{ProductID: 101, LocationID: 1, Qty: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.ReceiveInventory(context.Background(), ReceiveInput{ProductID: 101, LocationID: 1, Qty: 1, UnitCost: -1})
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	_, err = svc.ReceiveInventory(context.Background(), ReceiveInput{Qty: 1})
	require.True(t, shared.IsValidation(err))
}

func TestReceiveInventorySkipsDuplicateRef(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, nil)

	ref := uuid.NewSHA1(uuid.Nil, []byte("RCV:1:11")).String()
	_, err := svc.ReceiveInventory(context.Background(), ReceiveInput{
		ProductID: 101, LocationID: 1, Qty: 10, UnitCost: 100, RefID: ref,
	})
	require.NoError(t, err)

	_, err = svc.ReceiveInventory(context.Background(), ReceiveInput{
		ProductID: 101, LocationID: 1, Qty: 10, UnitCost: 100, RefID: ref,
	})
	require.True(t, shared.IsConflict(err))
	require.Len(t, repo.movements, 1)

	balance, err := svc.GetBalance(context.Background(), 1, 101)
	require.NoError(t, err)
	require.Equal(t, 10.0, balance.Qty)
}

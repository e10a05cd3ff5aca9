package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// ErrBalanceNotFound indicates no balance row exists yet for the key.
var ErrBalanceNotFound = errors.New("inventory: balance not found")

// Repository provides PostgreSQL backed stock persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, locationID, productID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
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

// GetBalance reads the current position without locking.
func (r *Repository) GetBalance(ctx context.Context, locationID, productID int64) (Balance, error) {
	var b Balance
	err := r.pool.QueryRow(ctx, `
		SELECT location_id, product_id, qty, avg_cost, updated_at
		FROM stock_balances WHERE location_id = $1 AND product_id = $2`,
		locationID, productID).Scan(&b.LocationID, &b.ProductID, &b.Qty, &b.AvgCost, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

// HasMovementRef reports whether a movement with the given traceability
// reference was already posted. Used to keep reconciliation re-posts
// idempotent per receipt line.
func (r *Repository) HasMovementRef(ctx context.Context, refID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE ref_id = $1)`, refID).Scan(&exists)
	return exists, err
}

func (t *txRepo) GetBalanceForUpdate(ctx context.Context, locationID, productID int64) (Balance, error) {
	var b Balance
	err := t.tx.QueryRow(ctx, `
		SELECT location_id, product_id, qty, avg_cost, updated_at
		FROM stock_balances WHERE location_id = $1 AND product_id = $2
		FOR UPDATE`,
		locationID, productID).Scan(&b.LocationID, &b.ProductID, &b.Qty, &b.AvgCost, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func (t *txRepo) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_balances (location_id, product_id, qty, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (location_id, product_id)
		DO UPDATE SET qty = EXCLUDED.qty, avg_cost = EXCLUDED.avg_cost, updated_at = NOW()`,
		balance.LocationID, balance.ProductID, balance.Qty, balance.AvgCost)
	return err
}

func (t *txRepo) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_movements (code, type, location_id, product_id, qty, unit_cost, ref_module, ref_id, note, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		movement.Code, movement.Type, movement.LocationID, movement.ProductID,
		movement.Qty, movement.UnitCost, movement.RefModule, movement.RefID,
		movement.Note, movement.PostedAt).Scan(&id)
	return id, err
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, locationID, productID int64) (Balance, error)
	HasMovementRef(ctx context.Context, refID string) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations. The weighted-average cost
// basis lives here: each inbound posting blends the incoming unit cost
// into the running balance by quantity.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ReceiveInventory posts an inbound movement for a received line and
// re-weights the average cost. Quantity must be positive; zero-quantity
// lines are skipped upstream by the receiving workflow.
func (s *Service) ReceiveInventory(ctx context.Context, input ReceiveInput) (StockEntry, error) {
	if input.LocationID == 0 || input.ProductID == 0 {
		return StockEntry{}, shared.ValidationError("locationId", "inventory: location and product required")
	}
	if input.Qty <= 0 {
		return StockEntry{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return StockEntry{}, ErrInvalidUnitCost
	}
	if input.RefID != "" {
		if _, err := uuid.Parse(input.RefID); err != nil {
			return StockEntry{}, fmt.Errorf("inventory: invalid ref id: %w", err)
		}
		// Reconciliation re-drives whole receipts; skip lines already posted.
		posted, err := s.repo.HasMovementRef(ctx, input.RefID)
		if err != nil {
			return StockEntry{}, err
		}
		if posted {
			return StockEntry{}, shared.ConflictError("inventory: movement already posted")
		}
	}

	now := time.Now().UTC()
	code := fmt.Sprintf("RCV-PO%d-P%d-%d", input.PurchaseOrderID, input.ProductID, now.UnixNano())
	var entry StockEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetBalanceForUpdate(ctx, input.LocationID, input.ProductID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if errors.Is(err, ErrBalanceNotFound) {
			balance = Balance{LocationID: input.LocationID, ProductID: input.ProductID}
		}
		newQty := balance.Qty + input.Qty
		totalCost := balance.Qty*balance.AvgCost + input.Qty*input.UnitCost
		newAvg := balance.AvgCost
		if newQty != 0 {
			newAvg = totalCost / newQty
		}
		movement := Movement{
			Code:       code,
			Type:       MovementTypeReceive,
			LocationID: input.LocationID,
			ProductID:  input.ProductID,
			Qty:        input.Qty,
			UnitCost:   input.UnitCost,
			RefModule:  "PROCUREMENT",
			RefID:      input.RefID,
			Note:       input.Note,
			PostedAt:   now,
		}
		if _, err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		balance.Qty = newQty
		balance.AvgCost = newAvg
		if err := tx.UpsertBalance(ctx, balance); err != nil {
			return err
		}
		entry = StockEntry{
			MovementCode: code,
			ProductID:    input.ProductID,
			LocationID:   input.LocationID,
			QtyIn:        input.Qty,
			BalanceQty:   newQty,
			UnitCost:     input.UnitCost,
			BalanceCost:  newAvg,
			PostedAt:     now,
		}
		return nil
	})
	if err != nil {
		return StockEntry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "inventory:RECEIVE",
			Entity:   "stock_movement",
			EntityID: code,
			Meta: map[string]any{
				"location_id": input.LocationID,
				"product_id":  input.ProductID,
				"qty":         input.Qty,
				"po_id":       input.PurchaseOrderID,
			},
		})
	}
	return entry, nil
}

// GetBalance reports the current stock position.
func (s *Service) GetBalance(ctx context.Context, locationID, productID int64) (Balance, error) {
	if locationID == 0 || productID == 0 {
		return Balance{}, shared.ValidationError("locationId", "inventory: location and product required")
	}
	return s.repo.GetBalance(ctx, locationID, productID)
}

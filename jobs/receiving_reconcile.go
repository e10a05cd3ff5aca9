package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/procurement"
)

// ReceiptSource lists receipts whose inventory postings never completed.
type ReceiptSource interface {
	ListUnpostedReceipts(ctx context.Context, olderThan time.Time, limit int) ([]procurement.Receipt, error)
}

// Reposter re-drives the stock postings for one receipt.
type Reposter interface {
	RepostInventory(ctx context.Context, receipt procurement.Receipt, locationID int64) error
}

// MatchReader rebuilds the cached match snapshot when asked.
type MatchReader interface {
	GetThreeWayMatchStatus(ctx context.Context, poID int64) (finance.ThreeWayMatchStatus, error)
}

// ReconcilerConfig tunes the sweep.
type ReconcilerConfig struct {
	// MinAge keeps freshly created receipts out of the sweep so the
	// synchronous workflow gets a chance to finish first.
	MinAge     time.Duration
	BatchSize  int
	LocationID int64
}

// Reconciler sweeps completed receipts whose inventory postings did not
// all land and re-drives them. Postings are idempotent per line, so a
// sweep that overlaps a slow synchronous run is harmless.
type Reconciler struct {
	source   ReceiptSource
	reposter Reposter
	matches  MatchReader
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
	cfg      ReconcilerConfig
}

// NewReconciler constructs the reconciliation job handler.
func NewReconciler(source ReceiptSource, reposter Reposter, matches MatchReader, metrics *jobmetrics.Metrics, logger *slog.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.MinAge <= 0 {
		cfg.MinAge = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Reconciler{source: source, reposter: reposter, matches: matches, metrics: metrics, logger: logger, cfg: cfg}
}

// HandleReconcile processes one TaskReceivingReconcile run.
func (r *Reconciler) HandleReconcile(ctx context.Context, t *asynq.Task) error {
	var payload ReceivingReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := r.metrics.Track("receiving_reconcile")
	return tracker.End(r.Sweep(ctx))
}

// Sweep runs one reconciliation pass. Failures on individual receipts are
// logged and skipped so one stuck receipt cannot starve the rest.
func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-r.cfg.MinAge)
	receipts, err := r.source.ListUnpostedReceipts(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		return nil
	}
	r.logger.Info("reconciling receipts", slog.Int("count", len(receipts)))

	reconciled := 0
	for _, receipt := range receipts {
		if err := r.reposter.RepostInventory(ctx, receipt, r.cfg.LocationID); err != nil {
			r.logger.Error("repost receipt",
				slog.Any("error", err),
				slog.Int64("receipt_id", receipt.ID),
				slog.String("number", receipt.Number))
			continue
		}
		reconciled++
		if _, err := r.matches.GetThreeWayMatchStatus(ctx, receipt.POID); err != nil {
			r.logger.Warn("refresh match after reconcile", slog.Any("error", err), slog.Int64("po_id", receipt.POID))
		}
	}
	r.metrics.AddReconciled(reconciled)
	return nil
}

// HandleMatchRefresh processes one TaskMatchRefresh task.
func (r *Reconciler) HandleMatchRefresh(ctx context.Context, t *asynq.Task) error {
	var payload MatchRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := r.metrics.Track("match_refresh")
	_, err := r.matches.GetThreeWayMatchStatus(ctx, payload.POID)
	return tracker.End(err)
}

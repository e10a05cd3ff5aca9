package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type fakeSource struct {
	receipts []procurement.Receipt
}

func (f *fakeSource) ListUnpostedReceipts(ctx context.Context, olderThan time.Time, limit int) ([]procurement.Receipt, error) {
	return f.receipts, nil
}

type fakeReposter struct {
	reposted []int64
	failID   int64
}

func (f *fakeReposter) RepostInventory(ctx context.Context, receipt procurement.Receipt, locationID int64) error {
	if receipt.ID == f.failID {
		return shared.UnavailableError("jobs: inventory store down", nil)
	}
	f.reposted = append(f.reposted, receipt.ID)
	return nil
}

type fakeMatches struct {
	refreshed []int64
}

func (f *fakeMatches) GetThreeWayMatchStatus(ctx context.Context, poID int64) (finance.ThreeWayMatchStatus, error) {
	f.refreshed = append(f.refreshed, poID)
	return finance.ThreeWayMatchStatus{POID: poID}, nil
}

func newTestReconciler(source *fakeSource, reposter *fakeReposter, matches *fakeMatches) *Reconciler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	return NewReconciler(source, reposter, matches, metrics, logger, ReconcilerConfig{LocationID: 1})
}

func TestSweepRepostsAndRefreshes(t *testing.T) {
	source := &fakeSource{receipts: []procurement.Receipt{
		{ID: 1, POID: 10, Number: "RCV-1"},
		{ID: 2, POID: 20, Number: "RCV-2"},
	}}
	reposter := &fakeReposter{}
	matches := &fakeMatches{}

	err := newTestReconciler(source, reposter, matches).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, reposter.reposted)
	require.Equal(t, []int64{10, 20}, matches.refreshed)
}

func TestSweepSkipsFailingReceipt(t *testing.T) {
	source := &fakeSource{receipts: []procurement.Receipt{
		{ID: 1, POID: 10, Number: "RCV-1"},
		{ID: 2, POID: 20, Number: "RCV-2"},
	}}
	reposter := &fakeReposter{failID: 1}
	matches := &fakeMatches{}

	err := newTestReconciler(source, reposter, matches).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{2}, reposter.reposted)
	require.Equal(t, []int64{20}, matches.refreshed)
}

func TestSweepEmpty(t *testing.T) {
	err := newTestReconciler(&fakeSource{}, &fakeReposter{}, &fakeMatches{}).Sweep(context.Background())
	require.NoError(t, err)
}

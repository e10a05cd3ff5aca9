package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReceivingReconcile re-drives inventory postings for receipts
	// recorded without all of their downstream effects.
	TaskReceivingReconcile = "receiving:reconcile"
	// TaskMatchRefresh rebuilds the cached three-way match snapshot for
	// one purchase order.
	TaskMatchRefresh = "finance:match_refresh"
)

// ReceivingReconcilePayload carries scheduling metadata for a sweep.
type ReceivingReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReceivingReconcileTask constructs an Asynq task for a reconciliation sweep.
func NewReceivingReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReceivingReconcilePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceivingReconcile, body, asynq.Queue(QueueDefault)), nil
}

// MatchRefreshPayload names the purchase order to refresh.
type MatchRefreshPayload struct {
	POID int64 `json:"po_id"`
}

// NewMatchRefreshTask constructs an Asynq task for one match refresh.
func NewMatchRefreshTask(poID int64) (*asynq.Task, error) {
	body, err := json.Marshal(MatchRefreshPayload{POID: poID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMatchRefresh, body, asynq.Queue(QueueDefault)), nil
}

package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryReconcile opens the daily cycle and regenerates the report.
	TaskInventoryReconcile = "inventory:reconcile"
	// TaskInventoryCloseDay archives verified counts and closes the cycle.
	TaskInventoryCloseDay = "inventory:close_day"
	// DefaultReconcileCron fires the reconciliation every morning.
	DefaultReconcileCron = "0 6 * * *"
)

// CyclePayload carries scheduling metadata for cycle tasks.
type CyclePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Actor        string    `json:"actor,omitempty"`
}

func (p CyclePayload) actor() string {
	if p.Actor == "" {
		return "scheduler"
	}
	return p.Actor
}

// NewReconcileTask constructs an Asynq task for the daily reconciliation.
func NewReconcileTask(at time.Time, actor string) (*asynq.Task, error) {
	return newCycleTask(TaskInventoryReconcile, at, actor)
}

// NewCloseDayTask constructs an Asynq task for the day close.
func NewCloseDayTask(at time.Time, actor string) (*asynq.Task, error) {
	return newCycleTask(TaskInventoryCloseDay, at, actor)
}

func newCycleTask(typ string, at time.Time, actor string) (*asynq.Task, error) {
	body, err := json.Marshal(CyclePayload{ScheduledFor: at, Actor: actor})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault)), nil
}

func decodeCyclePayload(t *asynq.Task) (CyclePayload, error) {
	var payload CyclePayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pantryledger/pantryledger/internal/close"
	jobmetrics "github.com/pantryledger/pantryledger/internal/jobs"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/sheet"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

type cycleController interface {
	Open(ctx context.Context, actor string) (reconcile.Result, error)
	CloseDay(ctx context.Context, actor string) (close.Summary, error)
}

// CycleJob runs the scheduled and on-demand cycle transitions.
type CycleJob struct {
	Cycle   cycleController
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCycleJob wires dependencies for the cycle handlers.
func NewCycleJob(cycle cycleController, logger *slog.Logger, metrics *jobmetrics.Metrics) *CycleJob {
	return &CycleJob{Cycle: cycle, Logger: logger, Metrics: metrics}
}

// HandleReconcile processes TaskInventoryReconcile tasks.
func (j *CycleJob) HandleReconcile(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Cycle == nil {
		return errors.New("reconcile job: handler not configured")
	}
	payload, err := decodeCyclePayload(t)
	if err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskInventoryReconcile)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("actor", payload.actor()))
	res, err := j.Cycle.Open(ctx, payload.actor())
	if err != nil {
		logger.Error("reconcile failed", slog.Any("error", err))
		return permanent(err)
	}
	logger.Info("reconcile finished",
		slog.String("run_id", res.RunID),
		slog.Int("rows", len(res.Rows)),
		slog.Int("unmatched", len(res.Unmatched)),
		slog.Int("inconsistencies", len(res.Inconsistencies)))
	return nil
}

// HandleCloseDay processes TaskInventoryCloseDay tasks. A cycle that is not
// reporting is logged and acknowledged.
func (j *CycleJob) HandleCloseDay(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Cycle == nil {
		return errors.New("close day job: handler not configured")
	}
	payload, err := decodeCyclePayload(t)
	if err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskInventoryCloseDay)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("actor", payload.actor()))
	sum, err := j.Cycle.CloseDay(ctx, payload.actor())
	if errors.Is(err, close.ErrCycleNotReporting) {
		logger.Warn("close day skipped", slog.Any("error", err))
		return nil
	}
	if err != nil {
		logger.Error("close day failed", slog.Any("error", err))
		return permanent(err)
	}
	j.metrics().AddClosed(sum.Archived, sum.Skipped)
	logger.Info("close day finished",
		slog.Int("archived", sum.Archived),
		slog.Int("skipped", sum.Skipped),
		slog.Int("pruned", sum.Pruned))
	return nil
}

// permanent marks structural table errors as non-retryable.
func permanent(err error) error {
	if errors.Is(err, sheet.ErrMissingTable) || errors.Is(err, sheet.ErrMissingColumn) {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	return err
}

func (j *CycleJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *CycleJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

package jobs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pantryledger/pantryledger/internal/close"
	jobmetrics "github.com/pantryledger/pantryledger/internal/jobs"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/sheet"
)

type stubCycle struct {
	openErr   error
	closeErr  error
	summary   close.Summary
	openedBy  string
	closedBy  string
	openCalls int
}

func (s *stubCycle) Open(_ context.Context, actor string) (reconcile.Result, error) {
	s.openCalls++
	s.openedBy = actor
	if s.openErr != nil {
		return reconcile.Result{}, s.openErr
	}
	return reconcile.Result{RunID: "run-1", Rows: make([]reconcile.ReportRow, 2)}, nil
}

func (s *stubCycle) CloseDay(_ context.Context, actor string) (close.Summary, error) {
	s.closedBy = actor
	return s.summary, s.closeErr
}

func newJob(c cycleController) *CycleJob {
	return NewCycleJob(c, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
}

func TestHandleReconcile(t *testing.T) {
	stub := &stubCycle{}
	task, err := NewReconcileTask(time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	require.Equal(t, TaskInventoryReconcile, task.Type())

	require.NoError(t, newJob(stub).HandleReconcile(context.Background(), task))
	require.Equal(t, 1, stub.openCalls)
	require.Equal(t, "scheduler", stub.openedBy)
}

func TestHandleReconcileMissingTableSkipsRetry(t *testing.T) {
	stub := &stubCycle{openErr: fmt.Errorf("reconcile: catalog: %w", sheet.ErrMissingTable)}
	task, err := NewReconcileTask(time.Now(), "ana")
	require.NoError(t, err)

	err = newJob(stub).HandleReconcile(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, sheet.ErrMissingTable)
	require.Equal(t, "ana", stub.openedBy)
}

func TestHandleReconcileTransientErrorRetries(t *testing.T) {
	stub := &stubCycle{openErr: close.ErrCycleBusy}
	task, err := NewReconcileTask(time.Now(), "")
	require.NoError(t, err)

	err = newJob(stub).HandleReconcile(context.Background(), task)
	require.ErrorIs(t, err, close.ErrCycleBusy)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleReconcileBadPayload(t *testing.T) {
	stub := &stubCycle{}
	err := newJob(stub).HandleReconcile(context.Background(), asynq.NewTask(TaskInventoryReconcile, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, stub.openCalls)
}

func TestHandleCloseDay(t *testing.T) {
	stub := &stubCycle{summary: close.Summary{Archived: 2, Skipped: 1}}
	task, err := NewCloseDayTask(time.Now(), "ana")
	require.NoError(t, err)
	require.NoError(t, newJob(stub).HandleCloseDay(context.Background(), task))
	require.Equal(t, "ana", stub.closedBy)

	stub = &stubCycle{closeErr: close.ErrCycleNotReporting}
	require.NoError(t, newJob(stub).HandleCloseDay(context.Background(), task))
}

func TestClientTriggerRejectsUnknownTask(t *testing.T) {
	c, err := NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	_, err = c.Trigger(context.Background(), "mail:send", "ana")
	require.ErrorIs(t, err, ErrUnsupportedTask)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}

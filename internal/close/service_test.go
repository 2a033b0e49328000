package close

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/platform/cache"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store/memory"
	"github.com/pantryledger/pantryledger/internal/workflow"
)

var day1 = time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC)

func seed() *memory.Store {
	return memory.NewWithTables(
		sheet.Table{
			Name:   "Catalogo",
			Header: []string{"Product", "Base Product", "Acquisition Format", "Acquisition Quantity", "Sale Factor", "Sale Unit"},
			Rows: [][]string{
				{"Limón 1kg", "Limón", "Malla (2 kg)", "2", "1", "kg"},
				{"Palta Hass", "Palta", "Caja (10 kg)", "10", "1", "kg"},
			},
		},
		sheet.Table{
			Name:   "Pedidos",
			Header: []string{"Order ID", "Order Date", "State", "Product", "Quantity"},
			Rows:   [][]string{{"1", "2024-03-05 09:00", "Pagado", "Limón 1kg", "3"}},
		},
		sheet.Table{
			Name:   "Adquisiciones",
			Header: []string{"Base Product", "Format", "Quantity"},
			Rows:   [][]string{{"Limón", "Malla", "8"}},
		},
		sheet.Table{
			Name:   "Historico",
			Header: ledger.Header(),
			Rows:   [][]string{{"2024-03-04T20:00:00Z", "Limón", "18", "20", "kg"}},
		},
		sheet.Table{Name: "Reporte", Header: reconcile.ReportHeader()},
	)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T, st *memory.Store, c *clock) *Service {
	t.Helper()
	engine, err := reconcile.NewEngine(st, reconcile.DefaultConfig(), nil)
	require.NoError(t, err)
	return NewService(st, engine, nil).WithNow(c.Now)
}

func TestDayLifecycle(t *testing.T) {
	ctx := context.Background()
	st := seed()
	c := &clock{now: day1}
	svc := newService(t, st, c)

	_, err := svc.CloseDay(ctx, "ana")
	require.ErrorIs(t, err, ErrCycleNotReporting)

	res, err := svc.Open(ctx, "cron")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	cycle, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, shared.CycleStatusReporting, cycle.Status)
	require.Equal(t, res.RunID, cycle.RunID)

	c.now = day1.Add(10 * time.Hour)
	rec, err := svc.RecordStock(ctx, []StockUpdate{
		{Base: "limon", Value: "30"},
		{Base: "Palta", Value: "no sé"},
		{Base: "Frutilla", Value: "1"},
	}, "ana")
	require.NoError(t, err)
	require.Equal(t, []string{"Frutilla"}, rec.Unknown)
	require.Len(t, rec.Applied, 2)
	require.Equal(t, workflow.StateApproved, rec.Applied[0].State)
	require.InDelta(t, -3.0, *rec.Applied[0].Discrepancy, 1e-9)
	require.Equal(t, workflow.StatePending, rec.Applied[1].State)

	report, err := st.Read(ctx, "Reporte")
	require.NoError(t, err)
	rows, _, err := reconcile.DecodeReport(report)
	require.NoError(t, err)
	lemon := rows[reconcile.FindRow(rows, "Limón")]
	require.InDelta(t, 30.0, *lemon.StockReal, 1e-9)
	require.InDelta(t, -3.0, *lemon.Discrepancy, 1e-9)
	require.Equal(t, "no sé", rows[reconcile.FindRow(rows, "Palta")].RawStockReal)

	records, err := svc.Recorder().List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	history, _ := st.Read(ctx, "Historico")
	require.Len(t, history.Rows, 3)

	summary, err := svc.CloseDay(ctx, "ana")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Archived)
	require.Equal(t, 1, summary.Skipped)

	cycle, err = svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, shared.CycleStatusOpen, cycle.Status)
	require.NotNil(t, cycle.ClosedAt)

	// Next morning: verified lemon count carries forward, palta falls back to its estimate.
	c.now = day1.AddDate(0, 0, 1)
	res, err = svc.Open(ctx, "cron")
	require.NoError(t, err)
	next := res.Rows[reconcile.FindRow(res.Rows, "Limón")]
	require.InDelta(t, 30.0, next.Yesterday, 1e-9)
	palta := res.Rows[reconcile.FindRow(res.Rows, "Palta")]
	require.InDelta(t, 0.0, palta.Yesterday, 1e-9)

	states, err := svc.States().List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Equal(t, workflow.StatePending, states[0].State)
}

func TestCloseAfterMidnightCarriesForward(t *testing.T) {
	ctx := context.Background()
	st := seed()
	c := &clock{now: day1}
	svc := newService(t, st, c)

	_, err := svc.Open(ctx, "cron")
	require.NoError(t, err)
	_, err = svc.RecordStock(ctx, []StockUpdate{{Base: "Limón", Value: "50"}}, "ana")
	require.NoError(t, err)

	c.now = time.Date(2024, 3, 6, 0, 30, 0, 0, time.UTC)
	summary, err := svc.CloseDay(ctx, "ana")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Archived)

	c.now = day1.AddDate(0, 0, 1)
	res, err := svc.Open(ctx, "cron")
	require.NoError(t, err)
	lemon := res.Rows[reconcile.FindRow(res.Rows, "Limón")]
	require.InDelta(t, 50.0, lemon.Yesterday, 1e-9)

	// A second run the same morning keeps the verified count.
	res, err = svc.Open(ctx, "cron")
	require.NoError(t, err)
	lemon = res.Rows[reconcile.FindRow(res.Rows, "Limón")]
	require.InDelta(t, 50.0, lemon.Yesterday, 1e-9)

	history, err := st.Read(ctx, "Historico")
	require.NoError(t, err)
	entries, err := ledger.Decode(history, time.UTC)
	require.NoError(t, err)
	verified := 0
	for _, e := range entries {
		if e.HasReal && e.Real == 50 {
			verified++
		}
	}
	require.Equal(t, 1, verified)
}

func TestCloseDayAppliesRetention(t *testing.T) {
	ctx := context.Background()
	st := seed()
	c := &clock{now: day1}
	svc := newService(t, st, c)

	for i := 0; i < 7; i++ {
		c.now = day1.AddDate(0, 0, i)
		_, err := svc.Open(ctx, "cron")
		require.NoError(t, err)
		_, err = svc.RecordStock(ctx, []StockUpdate{{Base: "Limón", Value: "10"}}, "ana")
		require.NoError(t, err)
		c.now = c.now.Add(12 * time.Hour)
		_, err = svc.CloseDay(ctx, "ana")
		require.NoError(t, err)
	}

	history, err := st.Read(ctx, "Historico")
	require.NoError(t, err)
	entries, err := ledger.Decode(history, time.UTC)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Base]++
	}
	require.Equal(t, ledger.DefaultRetention, counts["Limón"])
	require.Equal(t, ledger.DefaultRetention, counts["Palta"])
}

func TestOpenHonoursLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	locker := cache.NewLocker(rdb, time.Minute)

	ctx := context.Background()
	st := seed()
	svc := newService(t, st, &clock{now: day1}).WithLocker(locker)

	release, err := locker.Acquire(ctx, shared.CycleLockKey("Reporte"))
	require.NoError(t, err)
	_, err = svc.Open(ctx, "cron")
	require.ErrorIs(t, err, ErrCycleBusy)
	require.NoError(t, release(ctx))

	_, err = svc.Open(ctx, "cron")
	require.NoError(t, err)
}

func TestOpenFailsWithoutReportTable(t *testing.T) {
	ctx := context.Background()
	st := seed()
	cfg := reconcile.DefaultConfig()
	cfg.Tables.Report = "Falta"
	engine, err := reconcile.NewEngine(st, cfg, nil)
	require.NoError(t, err)
	svc := NewService(st, engine, nil)

	_, err = svc.Open(ctx, "cron")
	require.ErrorIs(t, err, sheet.ErrMissingTable)
	cycle, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, shared.CycleStatusOpen, cycle.Status)
}

package close

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/platform/cache"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
	"github.com/pantryledger/pantryledger/internal/variance"
	"github.com/pantryledger/pantryledger/internal/workflow"
)

// Service orchestrates the day lifecycle on top of the reconciliation engine.
type Service struct {
	store    store.Tabular
	engine   *reconcile.Engine
	states   *workflow.Service
	recorder *variance.Recorder
	locker   Locker
	lockKey  string
	tables   store.Tables
	loc      *time.Location
	keep     int
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service instance.
func NewService(st store.Tabular, engine *reconcile.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := engine.Config()
	return &Service{
		store:    st,
		engine:   engine,
		states:   workflow.NewService(st, cfg.Tables.States),
		recorder: variance.NewRecorder(st, cfg.Tables.Discrepancies, cfg.Tables.Ledger, cfg.Location, logger),
		lockKey:  shared.CycleLockKey(cfg.Tables.Report),
		tables:   cfg.Tables,
		loc:      cfg.Location,
		keep:     cfg.Retention,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
		s.engine.WithNow(now)
		s.states.WithNow(now)
		s.recorder.WithNow(now)
	}
	return s
}

// WithLocker guards Open and CloseDay with a distributed lock.
func (s *Service) WithLocker(l Locker) *Service {
	s.locker = l
	return s
}

// States exposes the workflow service backing the report.
func (s *Service) States() *workflow.Service {
	return s.states
}

// Recorder exposes the discrepancy recorder.
func (s *Service) Recorder() *variance.Recorder {
	return s.recorder
}

func (s *Service) lock(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, s.lockKey)
	if errors.Is(err, cache.ErrLocked) {
		return nil, ErrCycleBusy
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release cycle lock", slog.Any("error", err))
		}
	}, nil
}

// Status returns the persisted cycle cursor; a store without one is OPEN.
func (s *Service) Status(ctx context.Context) (Cycle, error) {
	return readCycle(ctx, s.store, s.tables.Cycle, s.loc)
}

func readCycle(ctx context.Context, st store.Tabular, table string, loc *time.Location) (Cycle, error) {
	t, err := st.Read(ctx, table)
	if errors.Is(err, sheet.ErrMissingTable) {
		return Cycle{Status: shared.CycleStatusOpen}, nil
	}
	if err != nil {
		return Cycle{}, err
	}
	idx, err := t.Require(cycleColumns...)
	if err != nil {
		return Cycle{}, err
	}
	if len(t.Rows) == 0 {
		return Cycle{Status: shared.CycleStatusOpen}, nil
	}
	r := t.Rows[len(t.Rows)-1]
	c := Cycle{
		Status:    strings.ToUpper(strings.TrimSpace(sheet.Cell(r, idx[0]))),
		RunID:     sheet.Cell(r, idx[1]),
		UpdatedBy: sheet.Cell(r, idx[4]),
	}
	if c.Status == "" {
		c.Status = shared.CycleStatusOpen
	}
	if ts, ok := sheet.ParseTime(sheet.Cell(r, idx[2]), loc); ok {
		c.OpenedAt = &ts
	}
	if ts, ok := sheet.ParseTime(sheet.Cell(r, idx[3]), loc); ok {
		c.ClosedAt = &ts
	}
	return c, nil
}

func writeCycle(ctx context.Context, st store.Tabular, table string, c Cycle) error {
	row := []string{c.Status, c.RunID, "", "", c.UpdatedBy}
	if c.OpenedAt != nil {
		row[2] = sheet.FormatTime(*c.OpenedAt)
	}
	if c.ClosedAt != nil {
		row[3] = sheet.FormatTime(*c.ClosedAt)
	}
	return st.Replace(ctx, sheet.Table{Name: table, Header: sheet.Header(cycleColumns...), Rows: [][]string{row}})
}

// Open runs the reconciliation and moves the cycle to REPORTING. Opening a
// day that is already reporting recomputes it.
func (s *Service) Open(ctx context.Context, actor string) (reconcile.Result, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}
	defer unlock()

	cycle, err := s.Status(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}
	if err := shared.ValidateCycleTransition(cycle.Status, shared.CycleStatusReporting); err != nil {
		return reconcile.Result{}, fmt.Errorf("close: open from %s: %w", cycle.Status, err)
	}
	opened := s.now()
	res, err := s.engine.RunWith(ctx, func(ctx context.Context, tx store.Tabular, res reconcile.Result) error {
		next := Cycle{Status: shared.CycleStatusReporting, RunID: res.RunID, OpenedAt: &opened, UpdatedBy: actor}
		if err := writeCycle(ctx, tx, s.tables.Cycle, next); err != nil {
			return fmt.Errorf("close: write cycle: %w", err)
		}
		return nil
	})
	if err != nil {
		return reconcile.Result{}, err
	}
	s.logger.Info("cycle opened", slog.String("run_id", res.RunID), slog.String("actor", actor))
	return res, nil
}

// RecordStock writes human counts into the report. A numeric value approves
// the product, logs a discrepancy and refreshes the discrepancy cell; anything
// else leaves the product pending. The ledger is not touched.
func (s *Service) RecordStock(ctx context.Context, updates []StockUpdate, actor string) (RecordResult, error) {
	var out RecordResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tabular) error {
		out = RecordResult{}
		t, err := tx.Read(ctx, s.tables.Report)
		if err != nil {
			return err
		}
		rows, layout, err := reconcile.DecodeReport(t)
		if err != nil {
			return err
		}

		var cells []sheet.CellUpdate
		var changes []workflow.Change
		var records []variance.Record
		for _, u := range updates {
			i := reconcile.FindRow(rows, u.Base)
			if i < 0 {
				out.Unknown = append(out.Unknown, u.Base)
				continue
			}
			row := rows[i]
			value := strings.TrimSpace(u.Value)
			real, ok := sheet.ParseNumber(value)
			if !ok {
				cells = append(cells,
					sheet.CellUpdate{Row: i, Col: layout.StockReal, Value: value},
					sheet.CellUpdate{Row: i, Col: layout.Discrepancy, Value: ""})
				changes = append(changes, workflow.Change{Base: row.Base, State: workflow.StatePending})
				out.Applied = append(out.Applied, StockResult{Base: row.Base, State: workflow.StatePending})
				continue
			}
			rec := variance.Compute(row.Today, real)
			rec.Base = row.Base
			disc := variance.Round6(rec.Discrepancy)
			cells = append(cells,
				sheet.CellUpdate{Row: i, Col: layout.StockReal, Value: sheet.FormatNumber(real)},
				sheet.CellUpdate{Row: i, Col: layout.Discrepancy, Value: sheet.FormatNumber(disc)})
			changes = append(changes, workflow.Change{Base: row.Base, State: workflow.StateApproved})
			records = append(records, rec)
			out.Applied = append(out.Applied, StockResult{Base: row.Base, State: workflow.StateApproved, Discrepancy: &disc})
		}
		if err := tx.Update(ctx, s.tables.Report, cells); err != nil {
			return err
		}
		if len(changes) > 0 {
			if _, err := s.states.Bind(tx).Apply(ctx, changes, actor); err != nil {
				return err
			}
		}
		if _, err := s.recorder.Bind(tx).Record(ctx, records, actor); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}
	if len(out.Unknown) > 0 {
		s.logger.Warn("stock edits for unknown products", slog.Any("products", out.Unknown))
	}
	return out, nil
}

// CloseDay archives every verified report row as an authoritative ledger
// entry, applies retention and moves the cycle back to OPEN. Rows without a
// numeric count are skipped so that the next run carries their estimate.
func (s *Service) CloseDay(ctx context.Context, actor string) (Summary, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer unlock()

	cycle, err := s.Status(ctx)
	if err != nil {
		return Summary{}, err
	}
	if cycle.Status != shared.CycleStatusReporting {
		return Summary{}, ErrCycleNotReporting
	}

	report, err := s.store.Read(ctx, s.tables.Report)
	if err != nil {
		return Summary{}, fmt.Errorf("close: report: %w", err)
	}
	rows, _, err := reconcile.DecodeReport(report)
	if err != nil {
		return Summary{}, fmt.Errorf("close: report: %w", err)
	}
	history, err := s.store.Read(ctx, s.tables.Ledger)
	if err != nil {
		return Summary{}, fmt.Errorf("close: ledger: %w", err)
	}
	entries, err := ledger.Decode(history, s.loc)
	if err != nil {
		return Summary{}, fmt.Errorf("close: ledger: %w", err)
	}

	now := s.now()
	summary := Summary{ClosedAt: now}
	seq := ledger.NextSeq(entries)
	for _, r := range rows {
		if r.Base == "" || r.StockReal == nil {
			summary.Skipped++
			continue
		}
		entries = append(entries, ledger.Entry{
			Timestamp: now,
			Base:      r.Base,
			Estimated: r.Today,
			Real:      *r.StockReal,
			HasReal:   true,
			Unit:      r.Unit,
			Seq:       seq,
		})
		seq++
		summary.Archived++
	}
	entries, summary.Pruned = ledger.Prune(entries, s.keep)
	encoded, err := ledger.Encode(history, entries)
	if err != nil {
		return Summary{}, err
	}

	next := cycle
	next.Status = shared.CycleStatusOpen
	next.ClosedAt = &now
	next.UpdatedBy = actor
	err = s.store.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, tx store.Tabular) error {
		if err := tx.Replace(ctx, encoded); err != nil {
			return fmt.Errorf("close: write ledger: %w", err)
		}
		return writeCycle(ctx, tx, s.tables.Cycle, next)
	})
	if err != nil {
		return Summary{}, err
	}
	s.logger.Info("cycle closed",
		slog.Int("archived", summary.Archived),
		slog.Int("skipped", summary.Skipped),
		slog.Int("pruned", summary.Pruned),
		slog.String("actor", actor))
	return summary, nil
}

// Verify back-fills a late count onto the newest ledger entry of base.
func (s *Service) Verify(ctx context.Context, base string, real float64, actor string) (variance.Record, error) {
	return s.recorder.Verify(ctx, base, real, actor)
}

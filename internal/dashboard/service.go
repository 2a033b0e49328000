// Package dashboard serves the report snapshot and batch edits to the UI.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pantryledger/pantryledger/internal/catalog"
	"github.com/pantryledger/pantryledger/internal/close"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
	"github.com/pantryledger/pantryledger/internal/textnorm"
	"github.com/pantryledger/pantryledger/internal/variance"
	"github.com/pantryledger/pantryledger/internal/workflow"
)

// Row joins a report row with its workflow state and catalog metadata.
type Row struct {
	reconcile.ReportRow
	Category  string         `json:"category,omitempty"`
	State     workflow.State `json:"state"`
	StateNote string         `json:"state_notes,omitempty"`
	UpdatedBy string         `json:"updated_by,omitempty"`
}

// Snapshot is the read model behind GET /api/dashboard.
type Snapshot struct {
	Cycle         close.Cycle       `json:"cycle"`
	Rows          []Row             `json:"rows"`
	Discrepancies []variance.Record `json:"top_discrepancies,omitempty"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

const topDiscrepancies = 10

// Service builds snapshots and forwards edits to the lifecycle controller,
// invalidating the cache after every write.
type Service struct {
	store  store.Tabular
	cycle  *close.Service
	tables store.Tables
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the dashboard service.
func NewService(st store.Tabular, cycle *close.Service, tables store.Tables, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, cycle: cycle, tables: tables, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Snapshot returns the cached snapshot or builds it once for concurrent callers.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	key, err := s.cache.BuildKey(ctx, "pantryledger", "dashboard", "snapshot")
	if err != nil {
		return Snapshot{}, err
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var snap Snapshot
		hit, err := s.cache.FetchJSON(ctx, key, &snap, func(ctx context.Context) (any, error) {
			return s.build(ctx)
		})
		recordLookup(hit)
		return snap, err
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

func (s *Service) build(ctx context.Context) (Snapshot, error) {
	started := time.Now()
	defer func() { observeBuild(time.Since(started)) }()

	cycle, err := s.cycle.Status(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	report, err := s.store.Read(ctx, s.tables.Report)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: report: %w", err)
	}
	rows, _, err := reconcile.DecodeReport(report)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: report: %w", err)
	}
	var idx *catalog.Index
	if t, err := s.store.Read(ctx, s.tables.Catalog); err == nil {
		if decoded, err := catalog.Decode(t); err == nil {
			idx = catalog.BuildIndex(decoded, s.logger)
		}
	} else if !errors.Is(err, sheet.ErrMissingTable) {
		return Snapshot{}, err
	}
	states, err := s.cycle.States().List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	byBase := make(map[string]workflow.ProductState, len(states))
	for _, ps := range states {
		byBase[textnorm.Key(ps.Base)] = ps
	}

	snap := Snapshot{Cycle: cycle, GeneratedAt: s.now()}
	for _, r := range rows {
		if r.Base == "" {
			continue
		}
		row := Row{ReportRow: r, State: workflow.StatePending}
		if ps, ok := byBase[textnorm.Key(r.Base)]; ok {
			row.State = ps.State
			row.StateNote = ps.Notes
			row.UpdatedBy = ps.UpdatedBy
		}
		if idx != nil {
			if bp, ok := idx.Base(r.Base); ok {
				row.Category = bp.Category
				if row.Unit == "" {
					row.Unit = bp.Unit
				}
			}
		}
		snap.Rows = append(snap.Rows, row)
	}

	records, err := s.cycle.Recorder().List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	top := variance.SortByMagnitude(records)
	if len(top) > topDiscrepancies {
		top = top[:topDiscrepancies]
	}
	snap.Discrepancies = top
	return snap, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("dashboard cache bump failed", slog.Any("error", err))
	}
}

// RecordStock applies a batch of human counts.
func (s *Service) RecordStock(ctx context.Context, updates []close.StockUpdate, actor string) (close.RecordResult, error) {
	res, err := s.cycle.RecordStock(ctx, updates, actor)
	if err != nil {
		return close.RecordResult{}, err
	}
	s.invalidate(ctx)
	return res, nil
}

// Transition sets a product's workflow state explicitly.
func (s *Service) Transition(ctx context.Context, base string, state workflow.State, notes, actor string) (workflow.ProductState, error) {
	ps, err := s.cycle.States().Transition(ctx, base, state, notes, actor)
	if err != nil {
		return workflow.ProductState{}, err
	}
	s.invalidate(ctx)
	return ps, nil
}

// Verify back-fills a late count onto the ledger.
func (s *Service) Verify(ctx context.Context, base string, real float64, actor string) (variance.Record, error) {
	rec, err := s.cycle.Verify(ctx, base, real, actor)
	if err != nil {
		return variance.Record{}, err
	}
	s.invalidate(ctx)
	return rec, nil
}

// Open runs the reconciliation for today.
func (s *Service) Open(ctx context.Context, actor string) (reconcile.Result, error) {
	res, err := s.cycle.Open(ctx, actor)
	if err != nil {
		return reconcile.Result{}, err
	}
	s.invalidate(ctx)
	return res, nil
}

// CloseDay archives verified counts.
func (s *Service) CloseDay(ctx context.Context, actor string) (close.Summary, error) {
	sum, err := s.cycle.CloseDay(ctx, actor)
	if err != nil {
		return close.Summary{}, err
	}
	s.invalidate(ctx)
	return sum, nil
}

// Cycle returns the lifecycle cursor.
func (s *Service) Cycle(ctx context.Context) (close.Cycle, error) {
	return s.cycle.Status(ctx)
}

// Discrepancies returns the full discrepancy log.
func (s *Service) Discrepancies(ctx context.Context) ([]variance.Record, error) {
	return s.cycle.Recorder().List(ctx)
}

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pantryledger/pantryledger/internal/catalog"
	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/procurement"
	"github.com/pantryledger/pantryledger/internal/sales"
	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
	"github.com/pantryledger/pantryledger/internal/textnorm"
	"github.com/pantryledger/pantryledger/internal/workflow"
)

// Observer receives the outcome of every successful run.
type Observer interface {
	ObserveReconcile(res Result, elapsed time.Duration)
}

// Result summarises one reconciliation run.
type Result struct {
	RunID           string
	Window          shared.Window
	Rows            []ReportRow
	NewEntries      []ledger.Entry
	Unmatched       []string
	Excluded        int
	Inconsistencies []procurement.Inconsistency
	Unresolved      int
	ApprovalsReset  int
	Superseded      int
	Pruned          int
}

// Engine runs the daily reconciliation against a tabular store.
type Engine struct {
	store    store.Tabular
	cfg      Config
	states   *workflow.Service
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewEngine validates cfg and constructs the engine.
func NewEngine(st store.Tabular, cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  st,
		cfg:    cfg,
		states: workflow.NewService(st, cfg.Tables.States),
		logger: logger,
		now:    time.Now,
	}, nil
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
		e.states.WithNow(now)
	}
	return e
}

// WithObserver registers a metrics observer.
func (e *Engine) WithObserver(o Observer) *Engine {
	e.observer = o
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Window returns the business day containing the current time.
func (e *Engine) Window() shared.Window {
	return shared.DayWindow(e.now(), e.cfg.Location)
}

type inputs struct {
	catalog  []catalog.Row
	orders   []sales.OrderLine
	buys     []procurement.Line
	buysDate bool
	ledger   sheet.Table
	entries  []ledger.Entry
	report   sheet.Table
}

func (e *Engine) read(ctx context.Context) (inputs, error) {
	var in inputs
	t := e.cfg.Tables
	loc := e.cfg.Location

	tbl, err := e.store.Read(ctx, t.Catalog)
	if err != nil {
		return in, fmt.Errorf("reconcile: catalog: %w", err)
	}
	if in.catalog, err = catalog.Decode(tbl); err != nil {
		return in, fmt.Errorf("reconcile: catalog: %w", err)
	}

	if tbl, err = e.store.Read(ctx, t.Orders); err != nil {
		return in, fmt.Errorf("reconcile: orders: %w", err)
	}
	if in.orders, err = sales.Decode(tbl, loc); err != nil {
		return in, fmt.Errorf("reconcile: orders: %w", err)
	}

	if tbl, err = e.store.Read(ctx, t.Acquisitions); err != nil {
		return in, fmt.Errorf("reconcile: acquisitions: %w", err)
	}
	if in.buys, in.buysDate, err = procurement.Decode(tbl, loc); err != nil {
		return in, fmt.Errorf("reconcile: acquisitions: %w", err)
	}

	if in.ledger, err = e.store.Read(ctx, t.Ledger); err != nil {
		return in, fmt.Errorf("reconcile: ledger: %w", err)
	}
	if len(in.ledger.Header) == 0 {
		in.ledger.Header = ledger.Header()
	}
	if in.entries, err = ledger.Decode(in.ledger, loc); err != nil {
		return in, fmt.Errorf("reconcile: ledger: %w", err)
	}

	if in.report, err = e.store.Read(ctx, t.Report); err != nil {
		return in, fmt.Errorf("reconcile: report: %w", err)
	}
	if len(in.report.Header) > 0 {
		if _, err := ResolveLayout(in.report); err != nil {
			return in, fmt.Errorf("reconcile: report: %w", err)
		}
	}
	return in, nil
}

// Run recomputes today's report and appends one estimate per base product to
// the ledger. Every table is read and validated before anything is written,
// and the writes are committed together.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	return e.RunWith(ctx, nil)
}

// CommitHook runs inside the write transaction of a reconciliation run, after
// the ledger and report have been written. An error rolls the run back where
// the store supports it.
type CommitHook func(ctx context.Context, tx store.Tabular, res Result) error

// RunWith is Run with an extra write committed alongside the run's own writes.
func (e *Engine) RunWith(ctx context.Context, hook CommitHook) (Result, error) {
	started := time.Now()
	now := e.now()
	window := shared.DayWindow(now, e.cfg.Location)
	res := Result{RunID: uuid.NewString(), Window: window}

	in, err := e.read(ctx)
	if err != nil {
		return Result{}, err
	}

	idx := catalog.BuildIndex(in.catalog, e.logger)
	sold := sales.Aggregate(in.orders, idx, window, sales.Options{
		AllowedStates: e.cfg.AllowedStates,
		EnforceStates: e.cfg.EnforceStates,
		BaseSource:    e.cfg.BaseSource,
	})
	bought := procurement.Aggregate(in.buys, in.buysDate, idx, window, procurement.Options{
		Mode:       e.cfg.PurchaseMode,
		DateFilter: e.cfg.PurchaseDateFilter,
	})
	// Today's estimates are replaced by this run; anything else, including a
	// close recorded after midnight, is the carried-forward stock.
	entries, superseded := ledger.Supersede(in.entries, window.Start)
	yesterday := ledger.LatestByBase(entries, e.cfg.PreferReal)

	res.Unmatched = sold.Unmatched
	res.Excluded = sold.Excluded
	res.Inconsistencies = bought.Inconsistencies
	res.Unresolved = bought.Unresolved

	notes := make(map[string][]string)
	for _, inc := range bought.Inconsistencies {
		key := textnorm.Key(inc.Base)
		notes[key] = append(notes[key], fmt.Sprintf("%s: %s", inc.Format, inc.Reason))
	}

	bases := idx.Bases()
	known := make(map[string]struct{}, len(bases))
	rows := make([]ReportRow, 0, len(bases))
	for _, bp := range bases {
		known[bp.Key] = struct{}{}
		prev := yesterday[bp.Key]
		row := ReportRow{
			Base:      bp.Name,
			Yesterday: prev.Quantity,
			Purchases: bought.ByBase[bp.Key],
			Sales:     sold.ByBase[bp.Key],
			Unit:      bp.Unit,
			Notes:     strings.Join(notes[bp.Key], "; "),
		}
		if row.Unit == "" {
			row.Unit = prev.Unit
		}
		row.Today = row.Yesterday + row.Purchases - row.Sales
		rows = append(rows, row)
	}
	for key, qty := range sold.ByBase {
		if _, ok := known[key]; !ok {
			e.logger.Warn("sales for base product missing from catalog",
				slog.String("base_product", key), slog.Float64("quantity", qty))
		}
	}

	col := collate.New(language.Spanish, collate.IgnoreCase)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := col.CompareString(rows[i].Base, rows[j].Base); c != 0 {
			return c < 0
		}
		return rows[i].Base < rows[j].Base
	})
	res.Rows = rows

	seq := ledger.NextSeq(in.entries)
	for i, r := range rows {
		entry := ledger.Entry{Timestamp: now, Base: r.Base, Estimated: r.Today, Unit: r.Unit, Seq: seq + i}
		res.NewEntries = append(res.NewEntries, entry)
		entries = append(entries, entry)
	}
	entries, pruned := ledger.Prune(entries, e.cfg.Retention)
	res.Superseded = superseded
	res.Pruned = pruned

	ledgerTable, err := ledger.Encode(in.ledger, entries)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: ledger: %w", err)
	}
	reportTable, err := EncodeReport(in.report, rows)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: report: %w", err)
	}

	// The write phase is not cancellable.
	wctx := context.WithoutCancel(ctx)
	err = e.store.WithTx(wctx, func(ctx context.Context, tx store.Tabular) error {
		reset, err := e.states.Bind(tx).ResetApproved(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: reset approvals: %w", err)
		}
		res.ApprovalsReset = reset
		if err := tx.Replace(ctx, ledgerTable); err != nil {
			return fmt.Errorf("reconcile: write ledger: %w", err)
		}
		if err := tx.Replace(ctx, reportTable); err != nil {
			return fmt.Errorf("reconcile: write report: %w", err)
		}
		if hook != nil {
			return hook(ctx, tx, res)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.logger.Info("reconciliation completed",
		slog.String("run_id", res.RunID),
		slog.Time("day", window.Start),
		slog.Int("rows", len(res.Rows)),
		slog.Int("unmatched", len(res.Unmatched)),
		slog.Int("excluded", res.Excluded),
		slog.Int("inconsistencies", len(res.Inconsistencies)),
		slog.Int("approvals_reset", res.ApprovalsReset),
		slog.Int("pruned", res.Pruned))
	if len(res.Unmatched) > 0 {
		e.logger.Warn("order products not found in catalog", slog.Any("products", res.Unmatched))
	}
	if e.observer != nil {
		e.observer.ObserveReconcile(res, time.Since(started))
	}
	return res, nil
}

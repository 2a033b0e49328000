package variance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
)

// Recorder appends discrepancy records and handles late verification.
type Recorder struct {
	store  store.Tabular
	log    string
	ledger string
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds the recorder over the discrepancy log and ledger tables.
func NewRecorder(st store.Tabular, logTable, ledgerTable string, loc *time.Location, logger *slog.Logger) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: st, log: logTable, ledger: ledgerTable, loc: loc, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (r *Recorder) WithNow(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

// Bind returns a copy writing through st.
func (r *Recorder) Bind(st store.Tabular) *Recorder {
	cp := *r
	cp.store = st
	return &cp
}

// Record stamps and appends records to the log, creating it on first use.
func (r *Recorder) Record(ctx context.Context, records []Record, actor string) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	for i, rec := range records {
		if strings.TrimSpace(rec.Base) == "" {
			return nil, fmt.Errorf("%w (record %d)", ErrMissingBase, i)
		}
	}
	if err := r.store.Ensure(ctx, r.log, sheet.Header(columns...)); err != nil {
		return nil, err
	}
	t, err := r.store.Read(ctx, r.log)
	if err != nil {
		return nil, err
	}
	idx, err := t.Require(columns...)
	if err != nil {
		return nil, err
	}
	now := r.now()
	out := make([]Record, 0, len(records))
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.Timestamp.IsZero() {
			rec.Timestamp = now
		}
		if rec.Actor == "" {
			rec.Actor = actor
		}
		row := make([]string, len(t.Header))
		row[idx[0]] = rec.ID
		row[idx[1]] = sheet.FormatTime(rec.Timestamp)
		row[idx[2]] = rec.Base
		row[idx[3]] = sheet.FormatNumber(Round6(rec.Estimated))
		row[idx[4]] = sheet.FormatNumber(Round6(rec.Real))
		row[idx[5]] = sheet.FormatNumber(Round6(rec.Discrepancy))
		row[idx[6]] = rec.Actor
		rows = append(rows, row)
		out = append(out, rec)
	}
	if err := r.store.Append(ctx, r.log, rows); err != nil {
		return nil, err
	}
	return out, nil
}

// List reads the whole log. A missing log yields no records.
func (r *Recorder) List(ctx context.Context) ([]Record, error) {
	t, err := r.store.Read(ctx, r.log)
	if errors.Is(err, sheet.ErrMissingTable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx, err := t.Require(ColTimestamp, ColBase, ColEstimated, ColReal)
	if err != nil {
		return nil, err
	}
	id := t.Index(ColID)
	disc := t.Index(ColDiscrepancy)
	actor := t.Index(ColActor)

	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		base := strings.TrimSpace(sheet.Cell(row, idx[1]))
		if base == "" {
			continue
		}
		ts, _ := sheet.ParseTime(sheet.Cell(row, idx[0]), r.loc)
		rec := Compute(sheet.Number(sheet.Cell(row, idx[2])), sheet.Number(sheet.Cell(row, idx[3])))
		if v, ok := sheet.ParseNumber(sheet.Cell(row, disc)); ok {
			rec.Discrepancy = v
		}
		rec.ID = sheet.Cell(row, id)
		rec.Timestamp = ts
		rec.Base = base
		rec.Actor = sheet.Cell(row, actor)
		out = append(out, rec)
	}
	return out, nil
}

// Verify records a late physical count: the newest ledger entry of base gets
// its real field and a discrepancy against that entry's estimate is logged.
func (r *Recorder) Verify(ctx context.Context, base string, real float64, actor string) (Record, error) {
	var rec Record
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tabular) error {
		t, err := tx.Read(ctx, r.ledger)
		if err != nil {
			return err
		}
		entries, err := ledger.Decode(t, r.loc)
		if err != nil {
			return err
		}
		entry, err := ledger.BackfillReal(entries, base, real)
		if err != nil {
			return err
		}
		col := t.Index(ledger.ColReal)
		if err := tx.Update(ctx, r.ledger, []sheet.CellUpdate{{Row: entry.Seq, Col: col, Value: sheet.FormatNumber(real)}}); err != nil {
			return fmt.Errorf("variance: backfill %s: %w", base, err)
		}
		rec = Compute(entry.Estimated, real)
		rec.Base = entry.Base
		recorded, err := r.Bind(tx).Record(ctx, []Record{rec}, actor)
		if err != nil {
			return err
		}
		rec = recorded[0]
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	r.logger.Info("late verification recorded",
		slog.String("base_product", rec.Base),
		slog.Float64("discrepancy", Round6(rec.Discrepancy)))
	return rec, nil
}

// Export formats records into CSV-ready strings.
func Export(records []Record) [][]string {
	out := make([][]string, 0, len(records)+1)
	out = append(out, []string{"ID", "Timestamp", "Base Product", "Estimated", "Real", "Discrepancy", "Actor"})
	for _, rec := range records {
		out = append(out, []string{
			rec.ID,
			sheet.FormatTime(rec.Timestamp),
			rec.Base,
			sheet.FormatNumber(Round6(rec.Estimated)),
			sheet.FormatNumber(Round6(rec.Real)),
			sheet.FormatNumber(Round6(rec.Discrepancy)),
			rec.Actor,
		})
	}
	return out
}

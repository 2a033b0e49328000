package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
	"github.com/pantryledger/pantryledger/internal/textnorm"
)

// Service reads and writes product states in a single table.
type Service struct {
	store store.Tabular
	table string
	now   func() time.Time
}

// NewService constructs a Service instance.
func NewService(st store.Tabular, table string) *Service {
	return &Service{store: st, table: table, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Bind returns a copy of the service writing through st, typically a transaction.
func (s *Service) Bind(st store.Tabular) *Service {
	cp := *s
	cp.store = st
	return &cp
}

// Transition sets the state of one product, creating the record when absent.
func (s *Service) Transition(ctx context.Context, base string, state State, notes, actor string) (ProductState, error) {
	out, err := s.Apply(ctx, []Change{{Base: base, State: state, Notes: notes}}, actor)
	if err != nil {
		return ProductState{}, err
	}
	return out[0], nil
}

// Apply performs several transitions with a single read of the state table.
func (s *Service) Apply(ctx context.Context, changes []Change, actor string) ([]ProductState, error) {
	for _, c := range changes {
		if _, err := ParseState(string(c.State)); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidState, c.State)
		}
		if textnorm.Key(c.Base) == "" {
			return nil, fmt.Errorf("workflow: base product required")
		}
	}
	if err := s.store.Ensure(ctx, s.table, sheet.Header(columns...)); err != nil {
		return nil, err
	}
	t, err := s.store.Read(ctx, s.table)
	if err != nil {
		return nil, err
	}
	idx, err := t.Require(columns...)
	if err != nil {
		return nil, err
	}
	rows := make(map[string]int, len(t.Rows))
	for i, r := range t.Rows {
		rows[textnorm.Key(sheet.Cell(r, idx[0]))] = i
	}

	now := s.now()
	var updates []sheet.CellUpdate
	var appends [][]string
	pending := make(map[string]int)
	out := make([]ProductState, 0, len(changes))
	for _, c := range changes {
		ps := ProductState{Base: strings.TrimSpace(c.Base), State: c.State, Notes: c.Notes, UpdatedBy: actor, UpdatedAt: now}
		out = append(out, ps)
		values := []string{ps.Base, string(ps.State), ps.Notes, ps.UpdatedBy, sheet.FormatTime(now)}
		key := textnorm.Key(c.Base)
		if pos, ok := rows[key]; ok {
			for i, v := range values[1:] {
				updates = append(updates, sheet.CellUpdate{Row: pos, Col: idx[i+1], Value: v})
			}
			continue
		}
		row := make([]string, len(t.Header))
		for i, v := range values {
			row[idx[i]] = v
		}
		if pos, ok := pending[key]; ok {
			appends[pos] = row
			continue
		}
		pending[key] = len(appends)
		appends = append(appends, row)
	}
	if err := s.store.Update(ctx, s.table, updates); err != nil {
		return nil, err
	}
	if len(appends) > 0 {
		if err := s.store.Append(ctx, s.table, appends); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Get returns the state of base or shared.ErrNotFound.
func (s *Service) Get(ctx context.Context, base string) (ProductState, error) {
	states, err := s.List(ctx)
	if err != nil {
		return ProductState{}, err
	}
	key := textnorm.Key(base)
	for _, ps := range states {
		if textnorm.Key(ps.Base) == key {
			return ps, nil
		}
	}
	return ProductState{}, fmt.Errorf("workflow: %s: %w", base, shared.ErrNotFound)
}

// List returns every recorded state. A missing table yields no states.
func (s *Service) List(ctx context.Context) ([]ProductState, error) {
	t, err := s.store.Read(ctx, s.table)
	if errors.Is(err, sheet.ErrMissingTable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx, err := t.Require(columns...)
	if err != nil {
		return nil, err
	}
	out := make([]ProductState, 0, len(t.Rows))
	for _, r := range t.Rows {
		base := strings.TrimSpace(sheet.Cell(r, idx[0]))
		if base == "" {
			continue
		}
		at, _ := sheet.ParseTime(sheet.Cell(r, idx[4]), time.UTC)
		out = append(out, ProductState{
			Base:      base,
			State:     State(strings.TrimSpace(sheet.Cell(r, idx[1]))),
			Notes:     sheet.Cell(r, idx[2]),
			UpdatedBy: sheet.Cell(r, idx[3]),
			UpdatedAt: at,
		})
	}
	return out, nil
}

// ResetApproved removes every approved record so that approval lasts one cycle.
func (s *Service) ResetApproved(ctx context.Context) (int, error) {
	t, err := s.store.Read(ctx, s.table)
	if errors.Is(err, sheet.ErrMissingTable) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	idx, err := t.Require(ColState)
	if err != nil {
		return 0, err
	}
	kept := t.Rows[:0:0]
	for _, r := range t.Rows {
		if State(strings.TrimSpace(sheet.Cell(r, idx[0]))) == StateApproved {
			continue
		}
		kept = append(kept, r)
	}
	removed := len(t.Rows) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	t.Rows = kept
	if err := s.store.Replace(ctx, t); err != nil {
		return 0, err
	}
	return removed, nil
}

// Package memory provides an in-process Tabular store used for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
)

// Store keeps tables in memory.
type Store struct {
	mu     sync.Mutex
	tables map[string]sheet.Table
}

// New constructs an empty store.
func New() *Store {
	return &Store{tables: make(map[string]sheet.Table)}
}

// NewWithTables seeds the store with the provided tables.
func NewWithTables(tables ...sheet.Table) *Store {
	s := New()
	for _, t := range tables {
		s.tables[t.Name] = t.Clone()
	}
	return s
}

var _ store.Tabular = (*Store)(nil)

// Read implements store.Tabular.
func (s *Store) Read(ctx context.Context, name string) (sheet.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return sheet.Table{}, fmt.Errorf("%w: %q", sheet.ErrMissingTable, name)
	}
	return t.Clone(), nil
}

// Replace implements store.Tabular.
func (s *Store) Replace(ctx context.Context, table sheet.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table.Name] = table.Clone()
	return nil
}

// Append implements store.Tabular.
func (s *Store) Append(ctx context.Context, name string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("%w: %q", sheet.ErrMissingTable, name)
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, append([]string(nil), r...))
	}
	s.tables[name] = t
	return nil
}

// Update implements store.Tabular.
func (s *Store) Update(ctx context.Context, name string, cells []sheet.CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("%w: %q", sheet.ErrMissingTable, name)
	}
	for _, c := range cells {
		if c.Row < 0 || c.Row >= len(t.Rows) || c.Col < 0 {
			return fmt.Errorf("memory: cell %d/%d out of range in %q", c.Row, c.Col, name)
		}
		row := t.Rows[c.Row]
		for len(row) <= c.Col {
			row = append(row, "")
		}
		row[c.Col] = c.Value
		t.Rows[c.Row] = row
	}
	s.tables[name] = t
	return nil
}

// Ensure implements store.Tabular.
func (s *Store) Ensure(ctx context.Context, name string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; ok {
		return nil
	}
	s.tables[name] = sheet.Table{Name: name, Header: append([]string(nil), header...)}
	return nil
}

// WithTx runs fn against a snapshot and publishes the snapshot on success.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, store.Tabular) error) error {
	s.mu.Lock()
	staged := New()
	for name, t := range s.tables {
		staged.tables[name] = t.Clone()
	}
	s.mu.Unlock()

	if err := fn(ctx, staged); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range staged.tables {
		s.tables[name] = t
	}
	return nil
}

// Names lists the stored tables.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	return names
}

// Package workbook stores tabular documents as worksheets of an xlsx file.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
)

// Store implements store.Tabular over a single workbook file. Every mutation is
// saved unless it runs inside WithTx, which saves once on success.
type Store struct {
	mu     sync.Mutex
	path   string
	file   *excelize.File
	staged bool
}

// Open loads path, creating an empty workbook when the file does not exist.
func Open(path string) (*Store, error) {
	f, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, file: f}, nil
}

func load(path string) (*excelize.File, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f := excelize.NewFile()
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("store/workbook: create %s: %w", path, err)
		}
		return f, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("store/workbook: open %s: %w", path, err)
	}
	return f, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

var _ store.Tabular = (*Store)(nil)

func (s *Store) exists(name string) bool {
	idx, err := s.file.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// Read implements store.Tabular.
func (s *Store) Read(ctx context.Context, name string) (sheet.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(name)
}

func (s *Store) read(name string) (sheet.Table, error) {
	if !s.exists(name) {
		return sheet.Table{}, fmt.Errorf("%w: %q", sheet.ErrMissingTable, name)
	}
	rows, err := s.file.GetRows(name)
	if err != nil {
		return sheet.Table{}, fmt.Errorf("store/workbook: read %q: %w", name, err)
	}
	table := sheet.Table{Name: name}
	if len(rows) == 0 {
		return table, nil
	}
	table.Header = rows[0]
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		table.Rows = append(table.Rows, r)
	}
	return table, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Replace implements store.Tabular.
func (s *Store) Replace(ctx context.Context, table sheet.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(table.Name) {
		existing, err := s.file.GetRows(table.Name)
		if err != nil {
			return fmt.Errorf("store/workbook: read %q: %w", table.Name, err)
		}
		for r := len(existing); r >= 1; r-- {
			if err := s.file.RemoveRow(table.Name, r); err != nil {
				return fmt.Errorf("store/workbook: clear %q: %w", table.Name, err)
			}
		}
	} else if _, err := s.file.NewSheet(table.Name); err != nil {
		return fmt.Errorf("store/workbook: create %q: %w", table.Name, err)
	}
	if err := s.writeRow(table.Name, 1, table.Header); err != nil {
		return err
	}
	for i, r := range table.Rows {
		if err := s.writeRow(table.Name, i+2, r); err != nil {
			return err
		}
	}
	return s.save()
}

// Append implements store.Tabular.
func (s *Store) Append(ctx context.Context, name string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.read(name)
	if err != nil {
		return err
	}
	existing, err := s.file.GetRows(name)
	if err != nil {
		return fmt.Errorf("store/workbook: read %q: %w", name, err)
	}
	next := len(existing) + 1
	if len(table.Header) == 0 && next == 1 {
		next = 2
	}
	for i, r := range rows {
		if err := s.writeRow(name, next+i, r); err != nil {
			return err
		}
	}
	return s.save()
}

// Update implements store.Tabular. Rows are addressed as returned by Read.
func (s *Store) Update(ctx context.Context, name string, cells []sheet.CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists(name) {
		return fmt.Errorf("%w: %q", sheet.ErrMissingTable, name)
	}
	physical, err := s.dataRows(name)
	if err != nil {
		return err
	}
	for _, c := range cells {
		if c.Row < 0 || c.Row >= len(physical) || c.Col < 0 {
			return fmt.Errorf("store/workbook: cell %d/%d out of range in %q", c.Row, c.Col, name)
		}
		addr, err := excelize.CoordinatesToCellName(c.Col+1, physical[c.Row])
		if err != nil {
			return err
		}
		if err := s.file.SetCellStr(name, addr, c.Value); err != nil {
			return fmt.Errorf("store/workbook: set %s!%s: %w", name, addr, err)
		}
	}
	return s.save()
}

// dataRows maps logical data rows to 1-based worksheet rows, skipping blanks.
func (s *Store) dataRows(name string) ([]int, error) {
	rows, err := s.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("store/workbook: read %q: %w", name, err)
	}
	var out []int
	for i := 1; i < len(rows); i++ {
		if !blank(rows[i]) {
			out = append(out, i+1)
		}
	}
	return out, nil
}

// Ensure implements store.Tabular.
func (s *Store) Ensure(ctx context.Context, name string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(name) {
		return nil
	}
	if _, err := s.file.NewSheet(name); err != nil {
		return fmt.Errorf("store/workbook: create %q: %w", name, err)
	}
	if err := s.writeRow(name, 1, header); err != nil {
		return err
	}
	return s.save()
}

// WithTx defers saving until fn succeeds and reloads the file from disk otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, store.Tabular) error) error {
	s.mu.Lock()
	if s.staged {
		s.mu.Unlock()
		return fn(ctx, s)
	}
	s.staged = true
	s.mu.Unlock()

	err := fn(ctx, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = false
	if err != nil {
		f, loadErr := load(s.path)
		if loadErr != nil {
			return errors.Join(err, loadErr)
		}
		_ = s.file.Close()
		s.file = f
		return err
	}
	return s.save()
}

func (s *Store) writeRow(name string, row int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	addr, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := s.file.SetSheetRow(name, addr, &cells); err != nil {
		return fmt.Errorf("store/workbook: write %s!%s: %w", name, addr, err)
	}
	return nil
}

func (s *Store) save() error {
	if s.staged {
		return nil
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("store/workbook: save %s: %w", s.path, err)
	}
	return nil
}

// Package sheet models the tabular documents the reconciliation reads and writes.
package sheet

import (
	"errors"
	"fmt"

	"github.com/pantryledger/pantryledger/internal/textnorm"
)

var (
	// ErrMissingTable indicates a required table is absent from the store.
	ErrMissingTable = errors.New("sheet: table not found")
	// ErrMissingColumn indicates a required column header is absent.
	ErrMissingColumn = errors.New("sheet: column not found")
)

// Table is a header row plus data rows of display strings.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Column names one logical column and the header spellings accepted for it.
type Column struct {
	Name    string
	Aliases []string
}

// Col builds a Column whose canonical header is name.
func Col(name string, aliases ...string) Column {
	return Column{Name: name, Aliases: aliases}
}

// Index returns the position of c in the header, matching case and accent
// insensitively against the canonical name and every alias.
func (t Table) Index(c Column) int {
	want := make(map[string]struct{}, len(c.Aliases)+1)
	want[textnorm.Key(c.Name)] = struct{}{}
	for _, alias := range c.Aliases {
		want[textnorm.Key(alias)] = struct{}{}
	}
	for i, h := range t.Header {
		if _, ok := want[textnorm.Key(h)]; ok {
			return i
		}
	}
	return -1
}

// Require resolves every column or fails naming the first missing one.
func (t Table) Require(cols ...Column) ([]int, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		pos := t.Index(c)
		if pos < 0 {
			return nil, fmt.Errorf("%w: %q in table %q", ErrMissingColumn, c.Name, t.Name)
		}
		idx[i] = pos
	}
	return idx, nil
}

// Cell returns row[i] or "" when the index is out of range.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Header builds a header row from column definitions.
func Header(cols ...Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Clone deep copies the table so callers may mutate the result.
func (t Table) Clone() Table {
	out := Table{Name: t.Name, Header: append([]string(nil), t.Header...)}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// CellUpdate addresses a single data cell by zero-based data row and column.
type CellUpdate struct {
	Row   int
	Col   int
	Value string
}

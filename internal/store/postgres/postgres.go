// Package postgres stores tabular documents in PostgreSQL as JSON rows.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pantryledger/pantryledger/internal/platform/db"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sheet_tables (
	name       TEXT PRIMARY KEY,
	header     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sheet_rows (
	table_name TEXT NOT NULL REFERENCES sheet_tables(name) ON DELETE CASCADE,
	row_no     INTEGER NOT NULL,
	cells      JSONB NOT NULL,
	PRIMARY KEY (table_name, row_no)
);`

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Store implements store.Tabular over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	q    dbtx
	inTx bool
}

// New constructs a Store bound to the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

var _ store.Tabular = (*Store)(nil)

// Migrate creates the backing tables when absent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store/postgres: migrate: %w", err)
	}
	return nil
}

// Read implements store.Tabular.
func (s *Store) Read(ctx context.Context, name string) (sheet.Table, error) {
	var rawHeader []byte
	err := s.q.QueryRow(ctx, `SELECT header FROM sheet_tables WHERE name = $1`, name).Scan(&rawHeader)
	if errors.Is(err, pgx.ErrNoRows) {
		return sheet.Table{}, fmt.Errorf("%w: %q", sheet.ErrMissingTable, name)
	}
	if err != nil {
		return sheet.Table{}, fmt.Errorf("store/postgres: read header %q: %w", name, err)
	}
	table := sheet.Table{Name: name}
	if err := json.Unmarshal(rawHeader, &table.Header); err != nil {
		return sheet.Table{}, fmt.Errorf("store/postgres: decode header %q: %w", name, err)
	}

	rows, err := s.q.Query(ctx, `SELECT cells FROM sheet_rows WHERE table_name = $1 ORDER BY row_no`, name)
	if err != nil {
		return sheet.Table{}, fmt.Errorf("store/postgres: read rows %q: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return sheet.Table{}, err
		}
		var cells []string
		if err := json.Unmarshal(raw, &cells); err != nil {
			return sheet.Table{}, fmt.Errorf("store/postgres: decode row %q: %w", name, err)
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, rows.Err()
}

// Replace implements store.Tabular.
func (s *Store) Replace(ctx context.Context, table sheet.Table) error {
	return s.WithTx(ctx, func(ctx context.Context, tx store.Tabular) error {
		ts := tx.(*Store)
		header, err := json.Marshal(table.Header)
		if err != nil {
			return err
		}
		if _, err := ts.q.Exec(ctx, `
INSERT INTO sheet_tables (name, header) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET header = EXCLUDED.header, updated_at = now()`, table.Name, header); err != nil {
			return fmt.Errorf("store/postgres: upsert %q: %w", table.Name, err)
		}
		if _, err := ts.q.Exec(ctx, `DELETE FROM sheet_rows WHERE table_name = $1`, table.Name); err != nil {
			return fmt.Errorf("store/postgres: clear %q: %w", table.Name, err)
		}
		return ts.copyRows(ctx, table.Name, 0, table.Rows)
	})
}

// Append implements store.Tabular.
func (s *Store) Append(ctx context.Context, name string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(ctx context.Context, tx store.Tabular) error {
		ts := tx.(*Store)
		var exists bool
		if err := ts.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sheet_tables WHERE name = $1)`, name).Scan(&exists); err != nil {
			return fmt.Errorf("store/postgres: lookup %q: %w", name, err)
		}
		if !exists {
			return fmt.Errorf("%w: %q", sheet.ErrMissingTable, name)
		}
		var next int
		if err := ts.q.QueryRow(ctx, `SELECT COALESCE(MAX(row_no) + 1, 0) FROM sheet_rows WHERE table_name = $1`, name).Scan(&next); err != nil {
			return fmt.Errorf("store/postgres: next row %q: %w", name, err)
		}
		return ts.copyRows(ctx, name, next, rows)
	})
}

// Update implements store.Tabular.
func (s *Store) Update(ctx context.Context, name string, cells []sheet.CellUpdate) error {
	if len(cells) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(ctx context.Context, tx store.Tabular) error {
		ts := tx.(*Store)
		for _, c := range cells {
			var raw []byte
			err := ts.q.QueryRow(ctx, `
SELECT cells FROM sheet_rows WHERE table_name = $1
ORDER BY row_no OFFSET $2 LIMIT 1 FOR UPDATE`, name, c.Row).Scan(&raw)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("store/postgres: row %d out of range in %q", c.Row, name)
			}
			if err != nil {
				return fmt.Errorf("store/postgres: load row %q: %w", name, err)
			}
			var row []string
			if err := json.Unmarshal(raw, &row); err != nil {
				return err
			}
			for len(row) <= c.Col {
				row = append(row, "")
			}
			row[c.Col] = c.Value
			encoded, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if _, err := ts.q.Exec(ctx, `
UPDATE sheet_rows SET cells = $3
WHERE table_name = $1 AND row_no = (
	SELECT row_no FROM sheet_rows WHERE table_name = $1 ORDER BY row_no OFFSET $2 LIMIT 1
)`, name, c.Row, encoded); err != nil {
				return fmt.Errorf("store/postgres: update row %q: %w", name, err)
			}
		}
		return nil
	})
}

// Ensure implements store.Tabular.
func (s *Store) Ensure(ctx context.Context, name string, header []string) error {
	encoded, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if _, err := s.q.Exec(ctx, `
INSERT INTO sheet_tables (name, header) VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING`, name, encoded); err != nil {
		return fmt.Errorf("store/postgres: ensure %q: %w", name, err)
	}
	return nil
}

// WithTx runs fn inside a single RepeatableRead transaction. Nested calls reuse it.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, store.Tabular) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Store{pool: s.pool, q: tx, inTx: true})
	})
}

func (s *Store) copyRows(ctx context.Context, name string, first int, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	src := make([][]any, len(rows))
	for i, r := range rows {
		encoded, err := json.Marshal(r)
		if err != nil {
			return err
		}
		src[i] = []any{name, first + i, encoded}
	}
	_, err := s.q.CopyFrom(ctx, pgx.Identifier{"sheet_rows"}, []string{"table_name", "row_no", "cells"}, pgx.CopyFromRows(src))
	if err != nil {
		return fmt.Errorf("store/postgres: copy rows %q: %w", name, err)
	}
	return nil
}

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store"
)

func TestReadMissingTable(t *testing.T) {
	s := New()
	_, err := s.Read(context.Background(), "Reporte")
	require.ErrorIs(t, err, sheet.ErrMissingTable)
}

func TestAppendUpdateAndClone(t *testing.T) {
	ctx := context.Background()
	s := NewWithTables(sheet.Table{Name: "T", Header: []string{"a", "b"}})
	require.NoError(t, s.Append(ctx, "T", [][]string{{"1", "2"}, {"3"}}))
	require.NoError(t, s.Update(ctx, "T", []sheet.CellUpdate{{Row: 1, Col: 1, Value: "4"}}))

	tbl, err := s.Read(ctx, "T")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, tbl.Rows)

	tbl.Rows[0][0] = "mutated"
	again, _ := s.Read(ctx, "T")
	require.Equal(t, "1", again.Rows[0][0])

	require.Error(t, s.Update(ctx, "T", []sheet.CellUpdate{{Row: 9, Col: 0, Value: "x"}}))
}

func TestWithTxDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewWithTables(sheet.Table{Name: "T", Header: []string{"a"}})
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tabular) error {
		require.NoError(t, tx.Append(ctx, "T", [][]string{{"x"}}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	tbl, _ := s.Read(ctx, "T")
	require.Empty(t, tbl.Rows)

	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tabular) error {
		return tx.Append(ctx, "T", [][]string{{"y"}})
	})
	require.NoError(t, err)
	tbl, _ = s.Read(ctx, "T")
	require.Equal(t, [][]string{{"y"}}, tbl.Rows)
}

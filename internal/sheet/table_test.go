package sheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequireMatchesAliasesInsensitively(t *testing.T) {
	tbl := Table{Name: "Pedidos", Header: []string{"ID Pedido", "Cantidad", "PRODUCTO BÁSE"}}
	idx, err := tbl.Require(Col("Order ID", "id pedido"), Col("Base Product", "producto base"))
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, idx)

	_, err = tbl.Require(Col("Order Date", "fecha"))
	require.ErrorIs(t, err, ErrMissingColumn)
	require.Contains(t, err.Error(), "Order Date")
}

func TestParseNumberAcceptsDecimalComma(t *testing.T) {
	cases := map[string]float64{
		"12,5":    12.5,
		"12.5":    12.5,
		" 3 ":     3,
		"1.234,5": 1234.5,
		"1,234.5": 1234.5,
		"-2":      -2,
	}
	for in, want := range cases {
		got, ok := ParseNumber(in)
		require.True(t, ok, in)
		require.InDelta(t, want, got, 1e-9, in)
	}
	for _, bad := range []string{"", "abc", "E3", "NaN"} {
		_, ok := ParseNumber(bad)
		require.False(t, ok, bad)
		require.Zero(t, Number(bad))
	}
}

func TestParseTimeLayoutsAndSerials(t *testing.T) {
	loc := time.FixedZone("CLT", -3*3600)
	got, ok := ParseTime("2024-03-05 10:30:00", loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 5, 10, 30, 0, 0, loc), got)

	got, ok = ParseTime("05/03/2024", loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, loc), got)

	got, ok = ParseTime("45356", loc)
	require.True(t, ok)
	require.Equal(t, 2024, got.Year())
	require.Equal(t, time.March, got.Month())
	require.Equal(t, 5, got.Day())

	got, ok = ParseTime("2024-03-05T10:30:00", loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 5, 10, 30, 0, 0, loc), got)

	got, ok = ParseTime("03-05-24 10:30", loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 5, 10, 30, 0, 0, loc), got)

	got, ok = ParseTime("3/5/24 10:30", loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 5, 10, 30, 0, 0, loc), got)

	_, ok = ParseTime("yesterday", loc)
	require.False(t, ok)
}

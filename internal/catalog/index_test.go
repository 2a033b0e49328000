package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

func catalogTable() sheet.Table {
	return sheet.Table{
		Name:   "Catalogo",
		Header: []string{"Nombre Producto", "Producto Base", "Formato Adquisición", "Cantidad Adquisición", "Unidad Adquisición", "Categoría", "Cantidad Venta", "Unidad Venta"},
		Rows: [][]string{
			{"Limón 1kg", "Limón", "Malla (2,5 kilos)", "2,5", "kg", "Frutas", "1", "Kilos"},
			{"Limón 500g", "Limón", "", "", "", "Frutas", "0,5", "kg"},
			{"Huevos docena", "Huevo", "Bandeja (30 unidades)", "30", "unidad", "Abarrotes", "12", "unidades"},
			{"Limón 1kg", "Limón", "", "", "", "", "1", "kg"},
			{"", "", "", "", "", "", "", ""},
		},
	}
}

func TestDecodeAndIndex(t *testing.T) {
	rows, err := Decode(catalogTable())
	require.NoError(t, err)
	require.Len(t, rows, 4)

	idx := BuildIndex(rows, nil)
	require.Equal(t, 1, idx.Duplicates)

	sku, ok := idx.Sku("  LIMON 500G ")
	require.True(t, ok)
	require.Equal(t, "limon", sku.BaseKey)
	require.InDelta(t, 0.5, sku.SaleFactor, 1e-9)

	factor, ok := idx.AcquisitionFactor("limon", "Malla (2,5 kilos)")
	require.True(t, ok)
	require.InDelta(t, 2.5, factor, 1e-9)

	factor, ok = idx.AcquisitionFactor("Huevo", "Bandeja")
	require.True(t, ok)
	require.InDelta(t, 30, factor, 1e-9)

	_, ok = idx.AcquisitionFactor("Huevo", "Caja")
	require.False(t, ok)

	require.Equal(t, "kg", idx.Unit("LIMÓN"))
	require.Equal(t, "unidad", idx.Unit("huevo"))

	bases := idx.Bases()
	require.Len(t, bases, 2)
	require.Equal(t, "Huevo", bases[0].Name)
	require.Equal(t, "Limón", bases[1].Name)
	require.Equal(t, "Frutas", bases[1].Category)
}

func TestDecodeMissingColumn(t *testing.T) {
	tbl := catalogTable()
	tbl.Header = tbl.Header[:2]
	_, err := Decode(tbl)
	require.ErrorIs(t, err, sheet.ErrMissingColumn)
	require.Contains(t, err.Error(), "Acquisition Format")
}

func TestExtractLabel(t *testing.T) {
	require.Equal(t, "Caja", ExtractLabel("Caja (10 Unidad)"))
	require.Equal(t, "Malla", ExtractLabel("Malla grande"))
	require.Equal(t, "Saco Grande", ExtractLabel("Saco Grande (25 kg)"))
	require.Equal(t, "", ExtractLabel("   "))
}

package reconcile

import (
	"strings"

	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/textnorm"
)

// Report columns.
var (
	ColBase        = sheet.Col("Base Product", "Producto Base", "Producto")
	ColYesterday   = sheet.Col("Inventory Yesterday", "Inventario Ayer")
	ColPurchases   = sheet.Col("Purchases", "Compras", "Compras Hoy")
	ColSales       = sheet.Col("Sales", "Ventas", "Ventas Hoy")
	ColToday       = sheet.Col("Inventory Today", "Inventario Hoy", "Inventario Hoy Estimado")
	ColStockReal   = sheet.Col("Stock Real", "Real", "Stock Real Usuario")
	ColDiscrepancy = sheet.Col("Discrepancy", "Discrepancia", "Diferencia")
	ColUnit        = sheet.Col("Unit", "Unidad")
	ColNotes       = sheet.Col("Notes", "Notas", "Observaciones")
)

// ReportHeader is the layout used when the report table has no header yet.
func ReportHeader() []string {
	return sheet.Header(ColBase, ColYesterday, ColPurchases, ColSales, ColToday, ColStockReal, ColDiscrepancy, ColUnit, ColNotes)
}

// ReportRow is one line of the working report.
type ReportRow struct {
	Base         string   `json:"base_product"`
	Yesterday    float64  `json:"inventory_yesterday"`
	Purchases    float64  `json:"purchases_today"`
	Sales        float64  `json:"sales_today"`
	Today        float64  `json:"inventory_today"`
	StockReal    *float64 `json:"stock_real,omitempty"`
	RawStockReal string   `json:"-"`
	Discrepancy  *float64 `json:"discrepancy,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// Layout holds column positions of a report table; optional columns are -1.
type Layout struct {
	Base, Yesterday, Purchases, Sales, Today, StockReal, Discrepancy, Unit, Notes int

	width int
}

// ResolveLayout locates the report columns. Base product, today's estimate,
// stock real and discrepancy are required.
func ResolveLayout(t sheet.Table) (Layout, error) {
	idx, err := t.Require(ColBase, ColToday, ColStockReal, ColDiscrepancy)
	if err != nil {
		return Layout{}, err
	}
	return Layout{
		Base:        idx[0],
		Today:       idx[1],
		StockReal:   idx[2],
		Discrepancy: idx[3],
		Yesterday:   t.Index(ColYesterday),
		Purchases:   t.Index(ColPurchases),
		Sales:       t.Index(ColSales),
		Unit:        t.Index(ColUnit),
		Notes:       t.Index(ColNotes),
		width:       len(t.Header),
	}, nil
}

// DecodeReport reads report rows along with their layout. Row i of the result
// is data row i of the table.
func DecodeReport(t sheet.Table) ([]ReportRow, Layout, error) {
	l, err := ResolveLayout(t)
	if err != nil {
		return nil, Layout{}, err
	}
	out := make([]ReportRow, len(t.Rows))
	for i, r := range t.Rows {
		row := ReportRow{
			Base:         strings.TrimSpace(sheet.Cell(r, l.Base)),
			Today:        sheet.Number(sheet.Cell(r, l.Today)),
			Yesterday:    sheet.Number(sheet.Cell(r, l.Yesterday)),
			Purchases:    sheet.Number(sheet.Cell(r, l.Purchases)),
			Sales:        sheet.Number(sheet.Cell(r, l.Sales)),
			RawStockReal: sheet.Cell(r, l.StockReal),
			Unit:         sheet.Cell(r, l.Unit),
			Notes:        sheet.Cell(r, l.Notes),
		}
		if v, ok := sheet.ParseNumber(row.RawStockReal); ok {
			row.StockReal = &v
		}
		if v, ok := sheet.ParseNumber(sheet.Cell(r, l.Discrepancy)); ok {
			row.Discrepancy = &v
		}
		out[i] = row
	}
	return out, l, nil
}

// FindRow returns the data row index of base or -1.
func FindRow(rows []ReportRow, base string) int {
	key := textnorm.Key(base)
	for i, r := range rows {
		if textnorm.Key(r.Base) == key {
			return i
		}
	}
	return -1
}

// EncodeReport renders rows in the column layout of tmpl.
func EncodeReport(tmpl sheet.Table, rows []ReportRow) (sheet.Table, error) {
	header := tmpl.Header
	if len(header) == 0 {
		header = ReportHeader()
	}
	out := sheet.Table{Name: tmpl.Name, Header: append([]string(nil), header...)}
	l, err := ResolveLayout(out)
	if err != nil {
		return sheet.Table{}, err
	}
	out.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, l.width)
		set := func(i int, v string) {
			if i >= 0 {
				row[i] = v
			}
		}
		set(l.Base, r.Base)
		set(l.Yesterday, sheet.FormatNumber(r.Yesterday))
		set(l.Purchases, sheet.FormatNumber(r.Purchases))
		set(l.Sales, sheet.FormatNumber(r.Sales))
		set(l.Today, sheet.FormatNumber(r.Today))
		if r.StockReal != nil {
			set(l.StockReal, sheet.FormatNumber(*r.StockReal))
		}
		if r.Discrepancy != nil {
			set(l.Discrepancy, sheet.FormatNumber(*r.Discrepancy))
		}
		set(l.Unit, r.Unit)
		set(l.Notes, r.Notes)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

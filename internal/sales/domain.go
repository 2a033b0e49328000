// Package sales aggregates the day's order lines into base-product quantities.
package sales

import (
	"strings"
	"time"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

// Order columns.
var (
	ColOrderID  = sheet.Col("Order ID", "ID Pedido", "Pedido", "N Pedido")
	ColDate     = sheet.Col("Order Date", "Fecha", "Fecha Pedido")
	ColState    = sheet.Col("State", "Estado", "Estado Pedido")
	ColProduct  = sheet.Col("Product", "Producto", "Nombre Producto")
	ColQuantity = sheet.Col("Quantity", "Cantidad", "Cantidad Vendida")
	ColBase     = sheet.Col("Base Product", "Producto Base")
)

// BaseSource selects where a line's base product comes from.
type BaseSource string

const (
	// BaseFromColumn trusts the order's base product column and falls back to the catalog.
	BaseFromColumn BaseSource = "column"
	// BaseFromCatalog always resolves through the catalog.
	BaseFromCatalog BaseSource = "catalog"
)

// OrderLine is one decoded order row.
type OrderLine struct {
	OrderID     string
	ProductName string
	RawQuantity string
	Quantity    float64
	OrderDate   time.Time
	HasDate     bool
	State       string
	BaseProduct string
}

// Voided reports whether the raw quantity carries the E-prefix void marker.
func (l OrderLine) Voided() bool {
	s := strings.TrimSpace(l.RawQuantity)
	return s != "" && (s[0] == 'E' || s[0] == 'e')
}

// Options tunes aggregation.
type Options struct {
	AllowedStates []string
	EnforceStates bool
	BaseSource    BaseSource
}

// Result holds the per-base totals and diagnostics.
type Result struct {
	// ByBase is keyed by normalized base product.
	ByBase    map[string]float64
	Unmatched []string
	Excluded  int
	Lines     int
}

// Package ledger reads and maintains the per-product stock history.
package ledger

import (
	"errors"
	"time"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

// ErrNoEntry indicates a base product has no ledger history.
var ErrNoEntry = errors.New("ledger: no entry for product")

// Ledger columns.
var (
	ColTimestamp = sheet.Col("Timestamp", "Fecha", "Date")
	ColBase      = sheet.Col("Base Product", "Producto Base", "Producto")
	ColEstimated = sheet.Col("Estimated", "Estimado", "Inventario Estimado")
	ColReal      = sheet.Col("Real", "Stock Real", "Inventario Real")
	ColUnit      = sheet.Col("Unit", "Unidad")
)

// DefaultRetention is the number of entries kept per product.
const DefaultRetention = 5

// Entry is one historical stock observation.
type Entry struct {
	Timestamp time.Time
	Base      string
	Estimated float64
	Real      float64
	HasReal   bool
	Unit      string
	// Seq is the insertion order and breaks timestamp ties.
	Seq int
}

// Stock is the carried-forward quantity for a base product.
type Stock struct {
	Base      string
	Quantity  float64
	Unit      string
	Timestamp time.Time
	Verified  bool
}

func newer(a, b Entry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.Seq > b.Seq
}

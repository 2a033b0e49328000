// Package procurement aggregates acquisitions into base-product quantities.
package procurement

import (
	"time"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

// Acquisition columns.
var (
	ColBase     = sheet.Col("Base Product", "Producto Base", "Producto")
	ColFormat   = sheet.Col("Format", "Formato", "Formato Adquisicion")
	ColQuantity = sheet.Col("Quantity", "Cantidad", "Cantidad Adquirida")
	ColDate     = sheet.Col("Date", "Fecha", "Fecha Adquisicion")
)

// Mode selects how purchased formats are converted to base units.
type Mode string

const (
	// ModeFactor multiplies by the catalog acquisition factor.
	ModeFactor Mode = "factor"
	// ModeUnits parses the format label and validates its unit against the base unit.
	ModeUnits Mode = "units"
)

// Line is one decoded acquisition row.
type Line struct {
	BaseProduct string
	FormatLabel string
	Quantity    float64
	Date        time.Time
	HasDate     bool
}

// Options tunes aggregation.
type Options struct {
	Mode Mode
	// DateFilter keeps only lines dated on or after the window start when the
	// table carries a date column.
	DateFilter bool
}

// Inconsistency flags a line whose format could not be converted.
type Inconsistency struct {
	Base   string `json:"base_product"`
	Format string `json:"format"`
	Reason string `json:"reason"`
}

// Result holds purchases keyed by normalized base product.
type Result struct {
	ByBase          map[string]float64
	Inconsistencies []Inconsistency
	Unresolved      int
}

// Package variance records differences between estimated and counted stock.
package variance

import (
	"errors"
	"time"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

// ErrMissingBase is returned when a record does not name its base product.
var ErrMissingBase = errors.New("variance: record without base product")

// Record is one entry of the append-only discrepancy log.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Base        string    `json:"base_product"`
	Estimated   float64   `json:"estimated"`
	Real        float64   `json:"real"`
	Discrepancy float64   `json:"discrepancy"`
	Actor       string    `json:"actor,omitempty"`
}

// Discrepancy log columns.
var (
	ColID          = sheet.Col("ID")
	ColTimestamp   = sheet.Col("Timestamp", "Fecha")
	ColBase        = sheet.Col("Base Product", "Producto Base", "Producto")
	ColEstimated   = sheet.Col("Estimated", "Estimado")
	ColReal        = sheet.Col("Real", "Stock Real")
	ColDiscrepancy = sheet.Col("Discrepancy", "Discrepancia", "Diferencia")
	ColActor       = sheet.Col("Actor", "Usuario")
)

var columns = []sheet.Column{ColID, ColTimestamp, ColBase, ColEstimated, ColReal, ColDiscrepancy, ColActor}

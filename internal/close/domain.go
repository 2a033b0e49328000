// Package close drives the daily open, report and close cycle.
package close

import (
	"context"
	"errors"
	"time"

	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/workflow"
)

var (
	// ErrCycleNotReporting indicates the day cannot be closed before it was opened.
	ErrCycleNotReporting = errors.New("close: cycle is not reporting")
	// ErrCycleBusy indicates another transition of the cycle is in progress.
	ErrCycleBusy = errors.New("close: cycle transition in progress")
	// ErrUnknownProduct indicates an edit for a product absent from the report.
	ErrUnknownProduct = errors.New("close: product not in report")
)

// Cycle is the persisted lifecycle cursor.
type Cycle struct {
	Status    string     `json:"status"`
	RunID     string     `json:"run_id,omitempty"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
}

// StockUpdate is a human-entered count. Value is kept verbatim when it is not a number.
type StockUpdate struct {
	Base  string
	Value string
}

// StockResult reports the outcome of one edit.
type StockResult struct {
	Base        string         `json:"base_product"`
	State       workflow.State `json:"state"`
	Discrepancy *float64       `json:"discrepancy,omitempty"`
}

// RecordResult aggregates a batch of edits.
type RecordResult struct {
	Applied []StockResult `json:"applied"`
	Unknown []string      `json:"unknown,omitempty"`
}

// Summary reports the outcome of closing a day.
type Summary struct {
	Archived int       `json:"archived"`
	Skipped  int       `json:"skipped"`
	Pruned   int       `json:"pruned"`
	ClosedAt time.Time `json:"closed_at"`
}

// Locker serialises lifecycle transitions across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// Cycle table columns.
var (
	ColStatus    = sheet.Col("Status", "Estado")
	ColRunID     = sheet.Col("Run ID", "Ejecucion")
	ColOpenedAt  = sheet.Col("Opened At", "Abierto")
	ColClosedAt  = sheet.Col("Closed At", "Cerrado")
	ColUpdatedBy = sheet.Col("Updated By", "Actualizado Por")
)

var cycleColumns = []sheet.Column{ColStatus, ColRunID, ColOpenedAt, ColClosedAt, ColUpdatedBy}

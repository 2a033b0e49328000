// Package store defines the tabular document port used by the reconciliation.
package store

import (
	"context"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

// Tabular is a document of named tables addressed by header and row position.
// Read returns sheet.ErrMissingTable for unknown names.
type Tabular interface {
	Read(ctx context.Context, name string) (sheet.Table, error)
	// Replace clears the table and writes header plus rows, creating it when absent.
	Replace(ctx context.Context, table sheet.Table) error
	Append(ctx context.Context, name string, rows [][]string) error
	Update(ctx context.Context, name string, cells []sheet.CellUpdate) error
	// Ensure creates an empty table with the given header when it does not exist.
	Ensure(ctx context.Context, name string, header []string) error
	// WithTx stages every write issued by fn and publishes them only when fn succeeds.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tabular) error) error
}

// Tables names the documents the application reads and writes.
type Tables struct {
	Catalog       string `envconfig:"TABLE_CATALOG" default:"Catalogo"`
	Orders        string `envconfig:"TABLE_ORDERS" default:"Pedidos"`
	Acquisitions  string `envconfig:"TABLE_ACQUISITIONS" default:"Adquisiciones"`
	Ledger        string `envconfig:"TABLE_LEDGER" default:"Historico"`
	Report        string `envconfig:"TABLE_REPORT" default:"Reporte"`
	Discrepancies string `envconfig:"TABLE_DISCREPANCIES" default:"Discrepancias"`
	States        string `envconfig:"TABLE_STATES" default:"Estados"`
	Cycle         string `envconfig:"TABLE_CYCLE" default:"Ciclo"`
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Catalog:       "Catalogo",
		Orders:        "Pedidos",
		Acquisitions:  "Adquisiciones",
		Ledger:        "Historico",
		Report:        "Reporte",
		Discrepancies: "Discrepancias",
		States:        "Estados",
		Cycle:         "Ciclo",
	}
}

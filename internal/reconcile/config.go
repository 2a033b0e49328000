// Package reconcile computes the daily inventory report and ledger estimates.
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/procurement"
	"github.com/pantryledger/pantryledger/internal/sales"
	"github.com/pantryledger/pantryledger/internal/store"
)

// DefaultAllowedStates are the order states counted as sold.
var DefaultAllowedStates = []string{"Pagado", "Preparando", "Entregado", "Completado"}

// Config selects the reconciliation strategy.
type Config struct {
	Location           *time.Location
	AllowedStates      []string
	EnforceStates      bool
	BaseSource         sales.BaseSource
	PurchaseMode       procurement.Mode
	PurchaseDateFilter bool
	PreferReal         bool
	Retention          int
	Tables             store.Tables
}

// DefaultConfig returns the configuration used by the daily job.
func DefaultConfig() Config {
	return Config{
		Location:      time.UTC,
		AllowedStates: append([]string(nil), DefaultAllowedStates...),
		EnforceStates: true,
		BaseSource:    sales.BaseFromColumn,
		PurchaseMode:  procurement.ModeFactor,
		PreferReal:    true,
		Retention:     ledger.DefaultRetention,
		Tables:        store.DefaultTables(),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Location == nil {
		return errors.New("reconcile: location required")
	}
	switch c.BaseSource {
	case sales.BaseFromColumn, sales.BaseFromCatalog:
	default:
		return fmt.Errorf("reconcile: unknown base source %q", c.BaseSource)
	}
	switch c.PurchaseMode {
	case procurement.ModeFactor, procurement.ModeUnits:
	default:
		return fmt.Errorf("reconcile: unknown purchase mode %q", c.PurchaseMode)
	}
	if c.Retention <= 0 {
		return errors.New("reconcile: retention must be positive")
	}
	t := c.Tables
	for _, name := range []string{t.Catalog, t.Orders, t.Acquisitions, t.Ledger, t.Report, t.Discrepancies, t.States, t.Cycle} {
		if name == "" {
			return errors.New("reconcile: every table name is required")
		}
	}
	return nil
}

package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pantryledger/pantryledger/internal/procurement"
	"github.com/pantryledger/pantryledger/internal/sales"
	_ "github.com/pantryledger/pantryledger/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "America/Santiago", cfg.Timezone)
	require.Equal(t, 5, cfg.LedgerRetention)
	require.Equal(t, "Historico", cfg.Ledger)
	require.Equal(t, "0 6 * * *", cfg.ReconcileCron)

	rc, err := cfg.Reconcile()
	require.NoError(t, err)
	require.Equal(t, "America/Santiago", rc.Location.String())
	require.Equal(t, []string{"Pagado", "Preparando", "Entregado", "Completado"}, rc.AllowedStates)
	require.True(t, rc.EnforceStates)
	require.Equal(t, sales.BaseFromColumn, rc.BaseSource)
	require.Equal(t, procurement.ModeFactor, rc.PurchaseMode)
	require.True(t, rc.PreferReal)
	require.Equal(t, "Reporte", rc.Tables.Report)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("RECON_TIMEZONE", "UTC")
	t.Setenv("RECON_ALLOWED_STATES", "Pagado, Entregado")
	t.Setenv("RECON_BASE_SOURCE", "catalog")
	t.Setenv("RECON_PURCHASE_MODE", "units")
	t.Setenv("RECON_PURCHASE_DATE_FILTER", "true")
	t.Setenv("LEDGER_RETENTION", "3")
	t.Setenv("TABLE_LEDGER", "Ledger")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	rc, err := cfg.Reconcile()
	require.NoError(t, err)
	require.Equal(t, []string{"Pagado", "Entregado"}, rc.AllowedStates)
	require.Equal(t, sales.BaseFromCatalog, rc.BaseSource)
	require.Equal(t, procurement.ModeUnits, rc.PurchaseMode)
	require.True(t, rc.PurchaseDateFilter)
	require.Equal(t, 3, rc.Retention)
	require.Equal(t, "Ledger", rc.Tables.Ledger)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":    {"STORE_DRIVER": "sqlite"},
		"timezone":  {"STORE_DRIVER": "memory", "RECON_TIMEZONE": "Mars/Olympus"},
		"mode":      {"STORE_DRIVER": "memory", "RECON_PURCHASE_MODE": "weight"},
		"retention": {"STORE_DRIVER": "memory", "LEDGER_RETENTION": "0"},
		"dsn":       {"STORE_DRIVER": "postgres", "PG_DSN": ""},
		"log":       {"STORE_DRIVER": "memory", "LOG_FORMAT": "xml"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
}

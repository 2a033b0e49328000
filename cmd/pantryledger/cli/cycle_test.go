package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pantryledger/pantryledger/internal/close"
	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store/memory"
)

func newCycle(t *testing.T, sold string) *close.Service {
	t.Helper()
	st := memory.NewWithTables(
		sheet.Table{
			Name:   "Catalogo",
			Header: []string{"Product", "Base Product", "Acquisition Format", "Acquisition Quantity", "Sale Factor", "Sale Unit"},
			Rows:   [][]string{{"Limón 1kg", "Limón", "Malla (2 kg)", "2", "1", "kg"}},
		},
		sheet.Table{
			Name:   "Pedidos",
			Header: []string{"Order ID", "Order Date", "State", "Base Product", "Product", "Quantity"},
			Rows:   [][]string{{"1", "2024-03-05 09:00", "Pagado", "", sold, "1"}},
		},
		sheet.Table{Name: "Adquisiciones", Header: []string{"Base Product", "Format", "Quantity"}},
		sheet.Table{Name: "Historico", Header: ledger.Header()},
		sheet.Table{Name: "Reporte", Header: reconcile.ReportHeader()},
	)
	engine, err := reconcile.NewEngine(st, reconcile.DefaultConfig(), nil)
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC) }
	return close.NewService(st, engine, nil).WithNow(now)
}

func TestCycleCommandOpenJSON(t *testing.T) {
	svc := newCycle(t, "Limón 1kg")
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := CycleCommand(context.Background(), svc, CycleOptions{Action: "open", JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitOK, code, stderr.String())

	var summary CycleSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, "open", summary.Action)
	require.Equal(t, 1, summary.Rows)
	require.NotEmpty(t, summary.RunID)
	require.Empty(t, summary.Unmatched)
}

func TestCycleCommandReportsUnmatched(t *testing.T) {
	svc := newCycle(t, "Frutilla 500g")
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := CycleCommand(context.Background(), svc, CycleOptions{Action: "open", Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitDiagnostics, code)
	require.Contains(t, stdout.String(), "unmatched: Frutilla 500g")
}

func TestCycleCommandStatusAndClose(t *testing.T) {
	svc := newCycle(t, "Limón 1kg")
	ctx := context.Background()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := CycleCommand(ctx, svc, CycleOptions{Action: "close", Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitError, code)
	require.Contains(t, stderr.String(), "cycle close:")

	require.Equal(t, ExitOK, CycleCommand(ctx, svc, CycleOptions{Action: "open", Stdout: stdout, Stderr: stderr}))

	stdout.Reset()
	require.Equal(t, ExitOK, CycleCommand(ctx, svc, CycleOptions{Action: "status", Actor: "ana", Stdout: stdout, Stderr: stderr}))
	require.Contains(t, stdout.String(), "cycle REPORTING")

	stdout.Reset()
	require.Equal(t, ExitOK, CycleCommand(ctx, svc, CycleOptions{Action: "close", Stdout: stdout, Stderr: stderr}))
	require.Contains(t, stdout.String(), "day closed: 0 archived, 1 skipped")
}

func TestCycleCommandUnknownAction(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := CycleCommand(context.Background(), nil, CycleOptions{Action: "rewind", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, ExitError, code)
	require.Contains(t, stderr.String(), "unknown action")
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	dashboardhttp "github.com/pantryledger/pantryledger/internal/dashboard/http"
	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/observability"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/jobs"
)

func TestActorMiddleware(t *testing.T) {
	var seen string
	h := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "  ana ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "ana", seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "system", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, strings.Repeat("x", 100))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Len(t, seen, maxActorLength)
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:     &Config{AppEnv: "production"},
		JobHandler: jobs.NewHandler(nil, nil),
		Metrics:    observability.NewMetrics(),
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `pantryledger_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestServicesEndToEnd(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RECON_TIMEZONE", "UTC")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	ctx := context.Background()
	svc, err := NewServices(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	seed := []sheet.Table{
		{
			Name:   cfg.Catalog,
			Header: []string{"Product", "Base Product", "Acquisition Format", "Acquisition Quantity", "Sale Factor", "Sale Unit"},
			Rows:   [][]string{{"Limón 1kg", "Limón", "Malla (2 kg)", "2", "1", "kg"}},
		},
		{Name: cfg.Orders, Header: []string{"Order ID", "Order Date", "State", "Product", "Quantity"}},
		{Name: cfg.Acquisitions, Header: []string{"Base Product", "Format", "Quantity"}},
		{Name: cfg.Ledger, Header: ledger.Header(), Rows: [][]string{{"2020-01-01T00:00:00Z", "Limón", "4", "5", "kg"}}},
		{Name: cfg.Report, Header: reconcile.ReportHeader()},
	}
	for _, tbl := range seed {
		require.NoError(t, svc.Store.Replace(ctx, tbl))
	}

	router := NewRouter(RouterParams{
		Config:           cfg,
		DashboardHandler: dashboardhttp.NewHandler(nil, svc.Dashboard),
		Metrics:          svc.Metrics,
	})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cycle/open", nil)
	req.Header.Set(ActorHeader, "ana")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cycle", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var cycle struct {
		Status    string `json:"status"`
		UpdatedBy string `json:"updated_by"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&cycle))
	require.Equal(t, shared.CycleStatusReporting, cycle.Status)
	require.Equal(t, "ana", cycle.UpdatedBy)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rr.Body.String(), "pantryledger_reconcile_runs_total 1")
}

// Package dashboardhttp exposes the dashboard query interface over HTTP.
package dashboardhttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pantryledger/pantryledger/internal/close"
	"github.com/pantryledger/pantryledger/internal/dashboard"
	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/platform/httpx"
	"github.com/pantryledger/pantryledger/internal/procurement"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/variance"
	"github.com/pantryledger/pantryledger/internal/workflow"
)

type dashboardService interface {
	Snapshot(ctx context.Context) (dashboard.Snapshot, error)
	RecordStock(ctx context.Context, updates []close.StockUpdate, actor string) (close.RecordResult, error)
	Transition(ctx context.Context, base string, state workflow.State, notes, actor string) (workflow.ProductState, error)
	Verify(ctx context.Context, base string, real float64, actor string) (variance.Record, error)
	Open(ctx context.Context, actor string) (reconcile.Result, error)
	CloseDay(ctx context.Context, actor string) (close.Summary, error)
	Cycle(ctx context.Context) (close.Cycle, error)
	Discrepancies(ctx context.Context) ([]variance.Record, error)
}

// Handler wires HTTP endpoints for the dashboard.
type Handler struct {
	logger    *slog.Logger
	service   dashboardService
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service dashboardService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers dashboard routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.snapshot)
	r.Post("/report/stock", h.recordStock)
	r.Post("/products/{base}/state", h.transition)
	r.Post("/ledger/verify", h.verify)
	r.Get("/cycle", h.cycle)
	r.Post("/cycle/open", h.open)
	r.Post("/cycle/close", h.closeDay)
	r.Get("/discrepancies/export", h.exportDiscrepancies)
}

type stockItem struct {
	BaseProduct string          `json:"base_product" validate:"required"`
	Quantity    json.RawMessage `json:"quantity"`
}

type stockRequest struct {
	Items []stockItem `json:"items" validate:"required,min=1,dive"`
}

type transitionRequest struct {
	State string `json:"state" validate:"required,oneof=pending verifying approved"`
	Notes string `json:"notes" validate:"max=500"`
}

type verifyRequest struct {
	BaseProduct string   `json:"base_product" validate:"required"`
	Quantity    *float64 `json:"quantity" validate:"required"`
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) recordStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if !h.decode(w, r, &req) {
		return
	}
	updates := make([]close.StockUpdate, 0, len(req.Items))
	for _, item := range req.Items {
		updates = append(updates, close.StockUpdate{Base: item.BaseProduct, Value: quantityText(item.Quantity)})
	}
	res, err := h.service.RecordStock(r.Context(), updates, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// quantityText accepts a JSON number or string. Anything unparseable is kept
// as text so that the product stays pending.
func quantityText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.TrimSpace(string(raw))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ps, err := h.service.Transition(r.Context(), chi.URLParam(r, "base"), workflow.State(req.State), req.Notes, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ps)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Verify(r.Context(), req.BaseProduct, *req.Quantity, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) cycle(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Cycle(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

type openResponse struct {
	RunID           string                      `json:"run_id"`
	Rows            []reconcile.ReportRow       `json:"rows"`
	Unmatched       []string                    `json:"unmatched_products,omitempty"`
	Excluded        int                         `json:"excluded_lines"`
	Inconsistencies []procurement.Inconsistency `json:"inconsistencies,omitempty"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Open(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, openResponse{
		RunID:           res.RunID,
		Rows:            res.Rows,
		Unmatched:       res.Unmatched,
		Excluded:        res.Excluded,
		Inconsistencies: res.Inconsistencies,
	})
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.CloseDay(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) exportDiscrepancies(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Discrepancies(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="discrepancies.csv"`)
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(variance.Export(records)); err != nil {
		h.logger.Error("export discrepancies", slog.Any("error", err))
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
			}
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", strings.Join(msgs, "; "))
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, close.ErrCycleNotReporting),
		errors.Is(err, close.ErrCycleBusy),
		errors.Is(err, shared.ErrInvalidCycleTransition):
		err = fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error())
	case errors.Is(err, workflow.ErrInvalidState):
		err = fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error())
	case errors.Is(err, ledger.ErrNoEntry), errors.Is(err, shared.ErrNotFound):
		err = fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error())
	case errors.Is(err, sheet.ErrMissingTable), errors.Is(err, sheet.ErrMissingColumn):
		err = fmt.Errorf("%w: %s", httpx.ErrUnprocessable, err.Error())
	default:
		h.logger.Error("dashboard request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

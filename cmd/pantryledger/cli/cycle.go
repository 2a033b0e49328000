package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pantryledger/pantryledger/internal/close"
	"github.com/pantryledger/pantryledger/internal/reconcile"
)

// Exit codes returned by CycleCommand.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitDiagnostics = 10
)

type cycleRunner interface {
	Open(ctx context.Context, actor string) (reconcile.Result, error)
	CloseDay(ctx context.Context, actor string) (close.Summary, error)
	Status(ctx context.Context) (close.Cycle, error)
}

// CycleOptions defines the flags of the cycle command.
type CycleOptions struct {
	Action     string
	Actor      string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CycleSummary is the JSON output of the cycle command.
type CycleSummary struct {
	Action          string         `json:"action"`
	Cycle           *close.Cycle   `json:"cycle,omitempty"`
	RunID           string         `json:"run_id,omitempty"`
	Rows            int            `json:"rows,omitempty"`
	Unmatched       []string       `json:"unmatched_products,omitempty"`
	Inconsistencies int            `json:"inconsistencies,omitempty"`
	Close           *close.Summary `json:"close,omitempty"`
}

// CycleCommand runs a cycle transition in-process and prints the outcome. It
// exits with ExitDiagnostics when a run leaves unmatched products or
// unconvertible acquisitions.
func CycleCommand(ctx context.Context, runner cycleRunner, opts CycleOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Actor == "" {
		opts.Actor = "cli"
	}
	action := strings.ToLower(strings.TrimSpace(opts.Action))
	summary := CycleSummary{Action: action}
	code := ExitOK

	switch action {
	case "open":
		res, err := runner.Open(ctx, opts.Actor)
		if err != nil {
			return fail(opts.Stderr, action, err)
		}
		summary.RunID = res.RunID
		summary.Rows = len(res.Rows)
		summary.Unmatched = res.Unmatched
		summary.Inconsistencies = len(res.Inconsistencies)
		if len(res.Unmatched) > 0 || len(res.Inconsistencies) > 0 {
			code = ExitDiagnostics
		}
	case "close":
		sum, err := runner.CloseDay(ctx, opts.Actor)
		if err != nil {
			return fail(opts.Stderr, action, err)
		}
		summary.Close = &sum
	case "status":
		cycle, err := runner.Status(ctx)
		if err != nil {
			return fail(opts.Stderr, action, err)
		}
		summary.Cycle = &cycle
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "cycle: unknown action %q (expected open, close or status)\n", opts.Action)
		return ExitError
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "cycle: encode json: %v\n", err)
			return ExitError
		}
		return code
	}
	renderCycleHuman(opts.Stdout, summary)
	return code
}

func fail(w io.Writer, action string, err error) int {
	_, _ = fmt.Fprintf(w, "cycle %s: %v\n", action, err)
	return ExitError
}

func renderCycleHuman(w io.Writer, s CycleSummary) {
	switch {
	case s.Cycle != nil:
		_, _ = fmt.Fprintf(w, "cycle %s (run %s, updated by %s)\n", s.Cycle.Status, valueOr(s.Cycle.RunID, "-"), valueOr(s.Cycle.UpdatedBy, "-"))
	case s.Close != nil:
		_, _ = fmt.Fprintf(w, "day closed: %d archived, %d skipped, %d pruned\n", s.Close.Archived, s.Close.Skipped, s.Close.Pruned)
	default:
		_, _ = fmt.Fprintf(w, "report %s: %d products\n", s.RunID, s.Rows)
		for _, name := range s.Unmatched {
			_, _ = fmt.Fprintf(w, "  unmatched: %s\n", name)
		}
		if s.Inconsistencies > 0 {
			_, _ = fmt.Fprintf(w, "  %d acquisition lines could not be converted\n", s.Inconsistencies)
		}
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

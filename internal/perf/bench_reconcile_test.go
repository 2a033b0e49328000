package perf

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/pantryledger/pantryledger/internal/reconcile"
)

func newEngine(tb testing.TB, products int) *reconcile.Engine {
	tb.Helper()
	engine, err := reconcile.NewEngine(largeStore(products), reconcile.DefaultConfig(), nil)
	if err != nil {
		tb.Fatalf("new engine: %v", err)
	}
	return engine.WithNow(func() time.Time { return benchDay })
}

func TestReconcileLatencyTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("latency target skipped in short mode")
	}
	engine := newEngine(t, 500)
	ctx := context.Background()

	samples := make([]time.Duration, 0, 10)
	for i := 0; i < 10; i++ {
		start := time.Now()
		res, err := engine.Run(ctx)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		samples = append(samples, time.Since(start))
		if len(res.Rows) != 500 {
			t.Fatalf("expected 500 report rows, got %d", len(res.Rows))
		}
	}

	if p95 := percentile95(samples); p95 > 2*time.Second {
		t.Fatalf("reconcile latency regression: p95=%s threshold=%s", p95, 2*time.Second)
	}
}

func BenchmarkReconcileRun(b *testing.B) {
	engine := newEngine(b, 500)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Run(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

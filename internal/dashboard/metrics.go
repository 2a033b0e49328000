package dashboard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheMetricsMu          sync.Mutex
	cacheMetricsInitialized bool

	cacheLookups       *prometheus.CounterVec
	snapshotBuildTimer prometheus.Histogram
	cacheMetricsError  error
)

// SetupCacheMetrics registers the snapshot cache collectors once.
func SetupCacheMetrics(reg prometheus.Registerer) error {
	cacheMetricsMu.Lock()
	defer cacheMetricsMu.Unlock()
	if cacheMetricsInitialized {
		return cacheMetricsError
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pantryledger_dashboard_cache_lookups_total",
		Help: "Dashboard snapshot cache lookups by outcome.",
	}, []string{"outcome"})
	snapshotBuildTimer = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pantryledger_dashboard_snapshot_build_seconds",
		Help:    "Duration required to build a dashboard snapshot.",
		Buckets: prometheus.DefBuckets,
	})

	for _, collector := range []prometheus.Collector{cacheLookups, snapshotBuildTimer} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				switch c := already.ExistingCollector.(type) {
				case *prometheus.CounterVec:
					cacheLookups = c
				case prometheus.Histogram:
					snapshotBuildTimer = c
				default:
					cacheMetricsError = fmt.Errorf("dashboard metrics: unexpected collector type %T", c)
				}
				continue
			}
			cacheMetricsError = err
			cacheLookups = nil
			snapshotBuildTimer = nil
			break
		}
	}
	cacheMetricsInitialized = true
	return cacheMetricsError
}

func recordLookup(hit bool) {
	if cacheLookups == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookups.WithLabelValues(outcome).Inc()
}

func observeBuild(d time.Duration) {
	if snapshotBuildTimer == nil {
		return
	}
	snapshotBuildTimer.Observe(d.Seconds())
}

// Package metrics exposes Prometheus counters for the aggregation pipeline.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespace = "lingonews"

// Metrics holds the aggregator's counters. Each instance owns a registry so
// several aggregators can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	CacheLookups     *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	Fallbacks        *prometheus.CounterVec
	PersistedTotal   prometheus.Counter
	PersistFailures  prometheus.Counter
	FetchDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &Metrics{registry: reg}
	m.CacheLookups = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Memory cache lookups by result (hit, miss).",
	}, []string{"result"})
	m.ProviderRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Provider calls by provider, operation and outcome.",
	}, []string{"provider", "op", "outcome"})
	m.Fallbacks = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_fallbacks_total",
		Help:      "Persistent tier fallback reads by result (served, empty, error).",
	}, []string{"result"})
	m.PersistedTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persisted_articles_total",
		Help:      "Articles written to the persistent tier.",
	})
	m.PersistFailures = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_failures_total",
		Help:      "Background persistence batches that failed.",
	})
	m.FetchDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_fetch_duration_seconds",
		Help:      "Provider call latency.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})
	return m
}

// WriteText writes every gathered family in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

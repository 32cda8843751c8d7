package querycache

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics is nil unless WithMetrics was given; every method tolerates that.
type metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	invalidations prometheus.Counter
	entries       prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		hits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apikit",
				Subsystem: "querycache",
				Name:      "hits_total",
				Help:      "Queries served from a fresh cache entry",
			},
			[]string{"domain"},
		),
		misses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apikit",
				Subsystem: "querycache",
				Name:      "misses_total",
				Help:      "Queries that required a fetch",
			},
			[]string{"domain"},
		),
		fetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apikit",
				Subsystem: "querycache",
				Name:      "fetch_errors_total",
				Help:      "Fetches that failed after all retries",
			},
			[]string{"domain"},
		),
		invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "apikit",
				Subsystem: "querycache",
				Name:      "invalidated_entries_total",
				Help:      "Entries marked stale by invalidation",
			},
		),
		entries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "apikit",
				Subsystem: "querycache",
				Name:      "entries",
				Help:      "Current number of cache entries",
			},
		),
	}
}

// domain labels a key by its first segment.
func domain(k Key) string {
	if k.IsZero() {
		return ""
	}
	return fmt.Sprint(k.segs[0])
}

func (m *metrics) hit(k Key) {
	if m != nil {
		m.hits.WithLabelValues(domain(k)).Inc()
	}
}

func (m *metrics) miss(k Key) {
	if m != nil {
		m.misses.WithLabelValues(domain(k)).Inc()
	}
}

func (m *metrics) fetchError(k Key) {
	if m != nil {
		m.fetchErrors.WithLabelValues(domain(k)).Inc()
	}
}

func (m *metrics) invalidated(n int) {
	if m != nil && n > 0 {
		m.invalidations.Add(float64(n))
	}
}

func (m *metrics) setEntries(n int) {
	if m != nil {
		m.entries.Set(float64(n))
	}
}

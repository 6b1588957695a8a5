package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hammer_tracker"

// Metrics holds the ingestion pipeline instruments. It implements tracker.Recorder.
type Metrics struct {
	registry   *prometheus.Registry
	ingestions *prometheus.CounterVec
	duration   prometheus.Histogram
	inserted   prometheus.Counter
	duplicates prometheus.Counter
	truncated  prometheus.Counter
}

// NewMetrics registers the instruments on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Leaderboard posts processed, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Time spent processing one leaderboard post.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_inserted_total",
			Help:      "Snapshot rows appended.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_duplicate_total",
			Help:      "Snapshot rows skipped because the key was already stored.",
		}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_rows_dropped_total",
			Help:      "Board rows dropped to fit the report size bound.",
		}),
	}

	m.registry.MustRegister(m.ingestions, m.duration, m.inserted, m.duplicates, m.truncated)

	return m
}

// Ingestion counts one processed post.
func (m *Metrics) Ingestion(result string, elapsed time.Duration) {
	m.ingestions.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// Snapshots counts stored and skipped rows.
func (m *Metrics) Snapshots(inserted, duplicates int) {
	m.inserted.Add(float64(inserted))
	m.duplicates.Add(float64(duplicates))
}

// Truncated counts rows dropped from a report.
func (m *Metrics) Truncated(rows int) {
	m.truncated.Add(float64(rows))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

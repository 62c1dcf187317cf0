// Package metrics exposes dashboard counters on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labmap_events_total",
			Help: "Dashboard events handled, by kind and outcome",
		},
		[]string{"event", "outcome"},
	)

	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labmap_event_duration_seconds",
			Help:    "Time to apply one event and rebuild the view",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"event"},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labmap_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	RenderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labmap_render_failures_total",
		Help: "Map initialisation failures reported by browsers",
	})

	Records = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labmap_records",
			Help: "Records in the loaded dataset",
		},
		[]string{"kind"},
	)

	LoadState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labmap_load_state",
		Help: "0 loading, 1 ready, -1 failed",
	})

	ClusterBuilds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "labmap_cluster_index_build_seconds",
		Help:    "Time to build one cluster index on a cache miss",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)

// Observe records one event.
func Observe(event string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	Events.WithLabelValues(event, outcome).Inc()
	EventDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
}

// ClusterBuilt matches mapview.ClusterCache.OnBuild.
func ClusterBuilt(_ int, elapsed time.Duration) {
	ClusterBuilds.Observe(elapsed.Seconds())
}

package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalDownloads tracks items that completed successfully.
	TotalDownloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilebatch_downloads_total",
		Help: "The total number of items downloaded and placed successfully.",
	})
	// TotalFailures tracks failed items, labeled by failure classification.
	TotalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebatch_failures_total",
		Help: "The total number of failed items, labeled by failure type.",
	}, []string{"type"})
	// ActiveDownloads tracks items currently in flight.
	ActiveDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tilebatch_active_downloads",
		Help: "The number of downloader invocations currently in flight.",
	})
	// ItemDuration observes per-item wall time.
	ItemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tilebatch_item_duration_seconds",
		Help:    "Histogram of per-item processing latencies.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the measurement persistence path.
var (
	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roofmetrics_saves_total",
			Help: "Measurement save attempts by outcome (direct, queued, failed)",
		},
		[]string{"outcome"},
	)
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roofmetrics_queue_pending",
			Help: "Save operations waiting in the offline queue",
		},
	)
	QueueFailed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roofmetrics_queue_failed",
			Help: "Save operations that exhausted their retries",
		},
	)
	ReplayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roofmetrics_replay_total",
			Help: "Queue replay attempts by outcome (synced, retried, failed)",
		},
		[]string{"outcome"},
	)
	NetworkUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roofmetrics_backend_up",
			Help: "Backend reachability as seen by the network watcher",
		},
	)
)

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	linkEnqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campuslink",
			Subsystem: "deeplink",
			Name:      "enqueues_total",
			Help:      "Total number of deep-link enqueue calls by outcome.",
		},
		[]string{"result"},
	)

	linkFlushes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campuslink",
			Subsystem: "deeplink",
			Name:      "flushes_total",
			Help:      "Total number of deep links delivered to the flush callback.",
		},
	)

	queueResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campuslink",
			Subsystem: "deeplink",
			Name:      "resets_total",
			Help:      "Total number of queue resets (session boundaries).",
		},
	)

	activeChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "campuslink",
			Subsystem: "realtime",
			Name:      "active_channels",
			Help:      "Current number of registered realtime channels.",
		},
	)

	channelTeardowns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campuslink",
			Subsystem: "realtime",
			Name:      "channel_teardowns_total",
			Help:      "Total number of channel handle teardowns by reason.",
		},
		[]string{"reason"},
	)

	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campuslink",
			Subsystem: "realtime",
			Name:      "reconnects_total",
			Help:      "Total number of invalidate-then-resubscribe cycles.",
		},
		[]string{"status"},
	)

	reconnectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "campuslink",
			Subsystem: "realtime",
			Name:      "reconnect_duration_seconds",
			Help:      "Duration of invalidate-then-resubscribe cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
	)
)

func init() {
	Registry.MustRegister(
		linkEnqueues,
		linkFlushes,
		queueResets,
		activeChannels,
		channelTeardowns,
		reconnects,
		reconnectDuration,
	)
}

// Enqueue outcome labels.
const (
	EnqueueStored    = "stored"
	EnqueueDeduped   = "deduped"
	EnqueueBypassed  = "bypassed"
	EnqueueMalformed = "malformed"
)

// Teardown reason labels.
const (
	TeardownReplaced     = "replaced"
	TeardownUnsubscribed = "unsubscribed"
	TeardownClosed       = "closed"
	TeardownSuspended    = "suspended"
)

// ObserveEnqueue records a deep-link enqueue outcome.
func ObserveEnqueue(result string) {
	linkEnqueues.WithLabelValues(result).Inc()
}

// ObserveFlush records a delivered deep link.
func ObserveFlush() {
	linkFlushes.Inc()
}

// ObserveReset records a queue reset.
func ObserveReset() {
	queueResets.Inc()
}

// SetActiveChannels records the current registry size.
func SetActiveChannels(n int) {
	activeChannels.Set(float64(n))
}

// ObserveTeardown records a channel handle teardown.
func ObserveTeardown(reason string) {
	channelTeardowns.WithLabelValues(reason).Inc()
}

// ObserveReconnect records the outcome and duration of a reconnect cycle.
func ObserveReconnect(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	reconnects.WithLabelValues(status).Inc()
	reconnectDuration.Observe(duration.Seconds())
}

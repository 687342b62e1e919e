package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wardctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wardctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	relaySessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wardctl",
			Subsystem: "relay",
			Name:      "sessions_active",
			Help:      "Currently registered relay sessions.",
		},
		[]string{"role"},
	)
	relayFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wardctl",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Inbound frames routed, by sender role and kind.",
		},
		[]string{"role", "kind", "outcome"},
	)
	relayFrameDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wardctl",
			Subsystem: "relay",
			Name:      "frame_duration_seconds",
			Help:      "Frame routing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role"},
	)
	relayForwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wardctl",
			Subsystem: "relay",
			Name:      "forwards_total",
			Help:      "Frames forwarded between sessions.",
		},
		[]string{"direction"},
	)
	relayForwardDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wardctl",
			Subsystem: "relay",
			Name:      "forward_drops_total",
			Help:      "Forwards that never reached a destination.",
		},
		[]string{"reason"},
	)
	relayHandshakeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wardctl",
			Subsystem: "relay",
			Name:      "handshake_failures_total",
			Help:      "Connections closed during the auth handshake.",
		},
		[]string{"reason"},
	)
	relayEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wardctl",
			Subsystem: "relay",
			Name:      "evictions_total",
			Help:      "Sessions evicted by the liveness sweeper.",
		},
		[]string{"role"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			relaySessions,
			relayFrames,
			relayFrameDuration,
			relayForwards,
			relayForwardDrops,
			relayHandshakeFailures,
			relayEvictions,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionOpen(role string) {
	RegisterMetrics()
	relaySessions.WithLabelValues(role).Inc()
}

func RecordSessionClose(role string) {
	RegisterMetrics()
	relaySessions.WithLabelValues(role).Dec()
}

func RecordFrame(role, kind, outcome string, duration time.Duration) {
	RegisterMetrics()
	relayFrames.WithLabelValues(role, kind, outcome).Inc()
	relayFrameDuration.WithLabelValues(role).Observe(duration.Seconds())
}

func RecordForward(direction string) {
	RegisterMetrics()
	relayForwards.WithLabelValues(direction).Inc()
}

func RecordForwardDrop(reason string) {
	RegisterMetrics()
	relayForwardDrops.WithLabelValues(reason).Inc()
}

func RecordHandshakeFailure(reason string) {
	RegisterMetrics()
	relayHandshakeFailures.WithLabelValues(reason).Inc()
}

func RecordEviction(role string) {
	RegisterMetrics()
	relayEvictions.WithLabelValues(role).Inc()
}

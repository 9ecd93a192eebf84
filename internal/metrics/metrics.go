package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for monitoring the ontime bridge

var (
	// Connection lifecycle
	ConnectionUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ontime_connection_up",
		Help: "Whether the device WebSocket is currently open (0 or 1)",
	})

	ConnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontime_connect_attempts_total",
		Help: "Total WebSocket dial attempts, including reconnects",
	})

	ReconnectsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontime_reconnects_scheduled_total",
		Help: "Total reconnect attempts scheduled after a connection loss",
	})

	// Inbound traffic
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontime_messages_received_total",
		Help: "Inbound WebSocket messages by envelope type",
	}, []string{"type"})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontime_frames_dropped_total",
		Help: "Inbound frames dropped because they could not be parsed",
	})

	// Event directory
	EventFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontime_event_fetches_total",
		Help: "Event directory fetches by result (success|error)",
	}, []string{"result"})

	EventFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ontime_event_fetch_duration_seconds",
		Help:    "Latency of the event directory HTTP fetch",
		Buckets: prometheus.DefBuckets,
	})
)

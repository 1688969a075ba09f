package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ConnectionAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_connection_attempts_total",
			Help: "Total attempts to open the game plugin endpoint",
		},
	)

	ConnectionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_connection_failures_total",
			Help: "Total failed connects and dropped connections",
		},
	)

	Connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_connected",
			Help: "1 while the game plugin endpoint is open",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_received_total",
			Help: "Decoded plugin events by filter outcome",
		},
		[]string{"outcome"}, // "allowed" or "filtered"
	)

	// Translation metrics
	TranslationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_translations_total",
			Help: "Completed translator calls",
		},
	)

	TranslationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_translation_errors_total",
			Help: "Failed translator calls",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_translation_cache_hits_total",
			Help: "Messages served from the translation cache",
		},
	)

	TranslationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_translation_duration_seconds",
			Help:    "Translator call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
	)

	OverlayClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_overlay_clients",
			Help: "Connected overlay websocket clients",
		},
	)
)

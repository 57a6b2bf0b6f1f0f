package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polling loop
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agromonitor_polls_total",
			Help: "Total number of sensor polls by result",
		},
		[]string{"result"}, // ok, skipped, transport_failure, sensor_failure, discarded
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agromonitor_poll_duration_seconds",
			Help:    "Time taken to fetch and evaluate one sensor reading",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	PumpActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agromonitor_pump_active",
			Help: "1 when irrigation is presumed active",
		},
	)

	// Notifications
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agromonitor_notifications_total",
			Help: "Total number of notifications appended to the log",
		},
		[]string{"kind"},
	)

	EmitterFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agromonitor_emitter_failures_total",
			Help: "Total number of failed notification emits",
		},
	)

	// Ingestion
	ReadingsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agromonitor_readings_ingested_total",
			Help: "Total number of sensor readings ingested",
		},
		[]string{"transport", "status"}, // transport: http, mqtt; status: stored, rejected
	)

	// Reports
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agromonitor_reports_total",
			Help: "Total number of summary reports generated",
		},
		[]string{"status"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agromonitor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agromonitor_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agromonitor_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)

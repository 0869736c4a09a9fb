package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Pipeline counters
	FramesRead    atomic.Uint64
	FramesCounted atomic.Uint64
	FramesSkipped atomic.Uint64

	// Error counters
	ReadErrors      atomic.Uint64
	InferenceErrors atomic.Uint64
	LogWriteErrors  atomic.Uint64

	// Attendance log
	RowsWritten atomic.Uint64

	// Live state
	Headcount      atomic.Uint64 // Most recent headcount
	SessionActive  atomic.Uint64 // 0 = idle/stopped, 1 = running
	SessionsTotal  atomic.Uint64
	StreamClients  atomic.Uint64 // Active MJPEG/SSE subscribers
	DetectionCount atomic.Uint64 // Raw detections in the last frame

	// Latency tracking
	DetectLatencyMs    atomic.Uint64 // Last inference latency in ms
	IterationLatencyMs atomic.Uint64 // Last full loop iteration in ms

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

// gauge registers a GaugeFunc mirroring one of the atomic counters.
func (m *Metrics) gauge(name, help string, load func() uint64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		func() float64 { return float64(load()) },
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.gauge("headcount_frames_read_total",
		"Total frames read from the video source",
		m.FramesRead.Load)
	m.gauge("headcount_frames_counted_total",
		"Total frames that produced a headcount",
		m.FramesCounted.Load)
	m.gauge("headcount_frames_skipped_total",
		"Total frames skipped after inference failures",
		m.FramesSkipped.Load)

	m.gauge("headcount_read_errors_total",
		"Total video source read errors",
		m.ReadErrors.Load)
	m.gauge("headcount_inference_errors_total",
		"Total detector inference errors",
		m.InferenceErrors.Load)
	m.gauge("headcount_log_write_errors_total",
		"Total attendance log write errors",
		m.LogWriteErrors.Load)

	m.gauge("headcount_rows_written_total",
		"Total rows appended to the attendance log",
		m.RowsWritten.Load)

	m.gauge("headcount_current",
		"Headcount of the most recent frame",
		m.Headcount.Load)
	m.gauge("headcount_session_active",
		"Session state (0=idle or stopped, 1=running)",
		m.SessionActive.Load)
	m.gauge("headcount_sessions_total",
		"Total sessions started",
		m.SessionsTotal.Load)
	m.gauge("headcount_stream_clients",
		"Active dashboard stream subscribers",
		m.StreamClients.Load)
	m.gauge("headcount_detections_last_frame",
		"Raw detections reported for the most recent frame",
		m.DetectionCount.Load)

	m.gauge("headcount_detect_latency_ms",
		"Inference latency of the most recent frame in milliseconds",
		m.DetectLatencyMs.Load)
	m.gauge("headcount_iteration_latency_ms",
		"Full loop iteration latency of the most recent frame in milliseconds",
		m.IterationLatencyMs.Load)
}

// UpdateDetectLatency records the latency of one inference call
func (m *Metrics) UpdateDetectLatency(d time.Duration) {
	m.DetectLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateIterationLatency records the latency of one full loop iteration
func (m *Metrics) UpdateIterationLatency(d time.Duration) {
	m.IterationLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}

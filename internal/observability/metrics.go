package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chplink"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_received_total",
			Help:      "Valid frames reassembled from the port.",
		},
		[]string{"command"},
	)
	frameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frame_errors_total",
			Help:      "Framing failures by kind.",
		},
		[]string{"kind"},
	)
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_sent_total",
			Help:      "Frames written to the port by send mode.",
		},
		[]string{"mode"},
	)
	bytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "bytes_read_total",
			Help:      "Bytes read from the port.",
		},
	)
	bytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "bytes_written_total",
			Help:      "Bytes written to the port.",
		},
	)
	heartbeats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "heartbeats_total",
			Help:      "Heartbeat ticks by result.",
		},
		[]string{"result"},
	)
	retries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "retries_total",
			Help:      "Retry-until-ack resends.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesReceived, frameErrors, framesSent,
			bytesRead, bytesWritten, heartbeats, retries,
		)
	})
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrameReceived(command string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(command).Inc()
}

func RecordFrameError(kind string) {
	RegisterMetrics()
	frameErrors.WithLabelValues(kind).Inc()
}

func RecordFrameSent(mode string) {
	RegisterMetrics()
	framesSent.WithLabelValues(mode).Inc()
}

func RecordBytesRead(n int) {
	RegisterMetrics()
	bytesRead.Add(float64(n))
}

func RecordBytesWritten(n int) {
	RegisterMetrics()
	bytesWritten.Add(float64(n))
}

func RecordHeartbeat(sent bool) {
	RegisterMetrics()
	result := "skipped"
	if sent {
		result = "sent"
	}
	heartbeats.WithLabelValues(result).Inc()
}

func RecordRetry() {
	RegisterMetrics()
	retries.Inc()
}

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
			Namespace: "esmwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esmwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	packets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esmwire",
			Subsystem: "packet",
			Name:      "total",
			Help:      "Packets sealed or opened, by outcome class.",
		},
		[]string{"direction", "outcome"},
	)
	packetBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esmwire",
			Subsystem: "packet",
			Name:      "size_bytes",
			Help:      "Size of packets sealed or opened.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"direction"},
	)
	payloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esmwire",
			Subsystem: "payload",
			Name:      "operations_total",
			Help:      "Payload encodes and decodes, by slot, format and outcome class.",
		},
		[]string{"op", "slot", "format", "outcome"},
	)
	payloadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esmwire",
			Subsystem: "payload",
			Name:      "duration_seconds",
			Help:      "Payload encode and decode duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		},
		[]string{"op", "slot"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, packets, packetBytes, payloads, payloadDuration)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordPacket counts one seal or open. size is skipped when zero.
func RecordPacket(direction, outcome string, size int) {
	RegisterMetrics()
	packets.WithLabelValues(direction, outcome).Inc()
	if size > 0 {
		packetBytes.WithLabelValues(direction).Observe(float64(size))
	}
}

func RecordPayload(op, slot, format, outcome string, duration time.Duration) {
	RegisterMetrics()
	payloads.WithLabelValues(op, slot, format, outcome).Inc()
	payloadDuration.WithLabelValues(op, slot).Observe(duration.Seconds())
}

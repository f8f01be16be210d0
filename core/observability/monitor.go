package observability

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Drop reasons
const (
	DropEmpty    = "empty"
	DropInvalid  = "invalid"
	DropRead     = "read"
	DropRejected = "rejected"
	DropWrite    = "write"
)

// Unmatched is the route label of requests that hit no registered route
const Unmatched = "unmatched"

// Monitor holds the Prometheus collectors of one engine
type Monitor struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	handlerDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	dropped         *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec

	namespace string
}

// NewMonitor creates a monitor with its own registry.
// Runtime and process collectors are registered alongside the engine metrics.
func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Monitor{
		registry:  reg,
		namespace: namespace,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of answered requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Time from accept to the last byte written",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		handlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "handler_duration_seconds",
				Help:      "Time spent inside route handlers",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		responseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Encoded response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"method", "route"},
		),
		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "dropped_total",
				Help:      "Connections closed without a complete response",
			},
			[]string{"reason"},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "queue_depth",
				Help:      "Packets waiting in an engine queue",
			},
			[]string{"queue", "processor"},
		),
	}
}

// RecordRequest records an answered request. handler is zero when no
// handler ran.
func (m *Monitor) RecordRequest(method, route string, status int, total, handler time.Duration, size int) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(total.Seconds())
	m.responseSize.WithLabelValues(method, route).Observe(float64(size))
	if handler > 0 {
		m.handlerDuration.WithLabelValues(method, route).Observe(handler.Seconds())
	}
}

// RecordDrop counts a connection closed without a response
func (m *Monitor) RecordDrop(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

// SetQueueDepth publishes the current length of a queue.
// processor is -1 for engine-wide queues.
func (m *Monitor) SetQueueDepth(queue string, processor int, depth int) {
	label := "engine"
	if processor >= 0 {
		label = strconv.Itoa(processor)
	}
	m.queueDepth.WithLabelValues(queue, label).Set(float64(depth))
}

// Registry exposes the underlying registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText writes every metric family in the Prometheus text format
func (m *Monitor) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// Text is WriteText into a byte slice
func (m *Monitor) Text() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType is the media type of the Text output
func (m *Monitor) ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crawlkit/gateway/types"
)

// PrometheusCollector implements types.MetricsCollector backed by
// Prometheus. Metric vectors are registered lazily on first use so
// constructing a collector never fails on duplicate registration in
// tests.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	activeConnections  prometheus.Gauge
	superseded         prometheus.Counter
	protocolViolations *prometheus.CounterVec
	handshakeReplay    prometheus.Histogram
	submitted          prometheus.Counter
	publishFailures    prometheus.Counter
	workerEvents       *prometheus.CounterVec
	notifications      *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: metrics namespace (defaults to "crawlgate" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "crawlgate"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of currently bound client connections.",
		})

		p.superseded = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "superseded_total",
			Help:      "Connections evicted by a newer authentication for the same identity.",
		})

		p.protocolViolations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "protocol_violations_total",
			Help:      "Connections closed for breaking the protocol, by violation kind.",
		}, []string{"kind"})

		p.handshakeReplay = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "handshake",
			Name:      "replay_records",
			Help:      "Records replayed per session handshake.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		})

		p.submitted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "dispatch",
			Name:      "submitted_total",
			Help:      "Crawl requests accepted and persisted.",
		})

		p.publishFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "dispatch",
			Name:      "publish_failures_total",
			Help:      "Work items that failed to publish after a successful ledger append.",
		})

		p.workerEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "correlator",
			Name:      "worker_events_total",
			Help:      "Consumed worker events by outcome.",
		}, []string{"outcome"})

		p.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Notification attempts, by whether a live connection received them.",
		}, []string{"delivered"})

		collectors := []prometheus.Collector{
			p.activeConnections, p.superseded, p.protocolViolations,
			p.handshakeReplay, p.submitted, p.publishFailures,
			p.workerEvents, p.notifications,
		}
		for _, c := range collectors {
			// AlreadyRegisteredError means another collector instance owns
			// the series; recording into the local instance stays safe, it
			// just isn't exported twice.
			_ = p.reg.Register(c)
		}
	})
}

// SetActiveConnections sets the bound-connection gauge.
func (p *PrometheusCollector) SetActiveConnections(count int) {
	p.ensureRegistered()
	p.activeConnections.Set(float64(count))
}

// IncrementSupersededConnections counts a superseded connection.
func (p *PrometheusCollector) IncrementSupersededConnections() {
	p.ensureRegistered()
	p.superseded.Inc()
}

// IncrementProtocolViolations counts a protocol violation by kind.
func (p *PrometheusCollector) IncrementProtocolViolations(kind string) {
	p.ensureRegistered()
	p.protocolViolations.WithLabelValues(kind).Inc()
}

// RecordHandshakeReplaySize observes the replay size of one handshake.
func (p *PrometheusCollector) RecordHandshakeReplaySize(count int) {
	p.ensureRegistered()
	p.handshakeReplay.Observe(float64(count))
}

// IncrementSubmitted counts an accepted submission.
func (p *PrometheusCollector) IncrementSubmitted() {
	p.ensureRegistered()
	p.submitted.Inc()
}

// IncrementPublishFailures counts a failed work item publish.
func (p *PrometheusCollector) IncrementPublishFailures() {
	p.ensureRegistered()
	p.publishFailures.Inc()
}

// IncrementWorkerEvents counts a consumed worker event by outcome.
func (p *PrometheusCollector) IncrementWorkerEvents(outcome string) {
	p.ensureRegistered()
	p.workerEvents.WithLabelValues(outcome).Inc()
}

// IncrementNotifications counts a notification attempt.
func (p *PrometheusCollector) IncrementNotifications(delivered bool) {
	p.ensureRegistered()
	label := "false"
	if delivered {
		label = "true"
	}
	p.notifications.WithLabelValues(label).Inc()
}

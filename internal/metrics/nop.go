// Package metrics provides types.MetricsCollector implementations: a
// no-op collector used by default and a Prometheus-backed collector.
package metrics

import "github.com/crawlkit/gateway/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external metrics
// collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// SetActiveConnections discards the connection gauge update.
func (n *NopMetrics) SetActiveConnections(_ /* count */ int) {}

// IncrementSupersededConnections discards the supersession counter.
func (n *NopMetrics) IncrementSupersededConnections() {}

// IncrementProtocolViolations discards the violation counter.
func (n *NopMetrics) IncrementProtocolViolations(_ /* kind */ string) {}

// RecordHandshakeReplaySize discards the replay size observation.
func (n *NopMetrics) RecordHandshakeReplaySize(_ /* count */ int) {}

// IncrementSubmitted discards the submission counter.
func (n *NopMetrics) IncrementSubmitted() {}

// IncrementPublishFailures discards the publish failure counter.
func (n *NopMetrics) IncrementPublishFailures() {}

// IncrementWorkerEvents discards the worker event counter.
func (n *NopMetrics) IncrementWorkerEvents(_ /* outcome */ string) {}

// IncrementNotifications discards the notification counter.
func (n *NopMetrics) IncrementNotifications(_ /* delivered */ bool) {}

package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods may be called from internal goroutines and must be
// thread-safe.
//
// This interface composes smaller, domain-focused interfaces so adapters
// can embed a no-op base and instrument only the areas they care about.
type MetricsCollector interface {
	ConnectionMetrics
	DispatchMetrics
	CorrelatorMetrics
}

// ConnectionMetrics defines metrics for the connection registry and
// session handling.
type ConnectionMetrics interface {
	// SetActiveConnections sets the current number of bound connections.
	SetActiveConnections(count int)

	// IncrementSupersededConnections counts connections evicted by a newer
	// authentication for the same identity.
	IncrementSupersededConnections()

	// IncrementProtocolViolations counts connections closed for breaking
	// the protocol, labeled by violation kind ("envelope", "event",
	// "payload").
	IncrementProtocolViolations(kind string)

	// RecordHandshakeReplaySize records the number of records replayed to
	// a client during a session handshake.
	RecordHandshakeReplaySize(count int)
}

// DispatchMetrics defines metrics for the request submission path.
type DispatchMetrics interface {
	// IncrementSubmitted counts requests accepted and persisted.
	IncrementSubmitted()

	// IncrementPublishFailures counts work items that failed to publish
	// after the ledger append succeeded, leaving the record Pending.
	IncrementPublishFailures()
}

// CorrelatorMetrics defines metrics for worker response consumption and
// notification delivery.
type CorrelatorMetrics interface {
	// IncrementWorkerEvents counts consumed worker events by outcome
	// ("completed", "failed", "duplicate", "orphaned", "malformed",
	// "store_unavailable").
	IncrementWorkerEvents(outcome string)

	// IncrementNotifications counts notification attempts; delivered is
	// false when the user had no live connection.
	IncrementNotifications(delivered bool)
}

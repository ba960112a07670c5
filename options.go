package gateway

import "github.com/crawlkit/gateway/types"

// Option configures a Gateway with optional dependencies.
type Option func(*gatewayOptions)

// gatewayOptions holds optional Gateway configuration.
type gatewayOptions struct {
	logger  types.Logger
	metrics types.MetricsCollector
	newID   func() string
}

// WithLogger sets a logger.
//
// Example:
//
//	logger := logging.NewSlogDefault()
//	gw, err := gateway.New(&cfg, conn, gateway.WithLogger(logger))
func WithLogger(logger types.Logger) Option {
	return func(o *gatewayOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Example:
//
//	collector := metrics.NewPrometheus(nil, "crawlgate")
//	gw, err := gateway.New(&cfg, conn, gateway.WithMetrics(collector))
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *gatewayOptions) {
		o.metrics = metrics
	}
}

// WithIDGenerator sets the request id generator. Defaults to random
// UUIDs; override for deterministic ids in tests.
func WithIDGenerator(newID func() string) Option {
	return func(o *gatewayOptions) {
		o.newID = newID
	}
}

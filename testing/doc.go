// Package testing provides helpers for testing gateway-dependent code:
// an embedded NATS server with JetStream enabled and a types.Logger that
// writes to the test log.
//
// Import with an alias to avoid clashing with the standard library:
//
//	gwtesting "github.com/crawlkit/gateway/testing"
package testing

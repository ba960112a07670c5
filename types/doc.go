// Package types defines the public types and interfaces shared across the
// gateway library.
//
// It exists as a separate package so internal packages can depend on these
// definitions without importing the root gateway package, avoiding import
// cycles. The root package re-exports the commonly used names via type
// aliases, so most consumers only ever import gateway itself.
//
// The package covers four areas:
//
//   - Crawl request records and their status state machine (record.go)
//   - The client connection protocol envelope and event payloads (events.go)
//   - The Conn abstraction over a live bidirectional connection (conn.go)
//   - The Logger and MetricsCollector extension interfaces (logger.go,
//     metrics_collector.go)
//
// Wire-level contracts for the broker hop (message header names and body
// shapes exchanged with workers) live in wire.go so worker implementations
// can import them without pulling in the gateway runtime.
package types

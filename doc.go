// Package gateway implements a real-time crawl gateway: it accepts work
// requests from clients over persistent bidirectional connections,
// delegates execution to an asynchronous worker pool via NATS JetStream,
// and delivers results back to the originating client, including clients
// that were offline when the result arrived.
//
// # Quick Start
//
//	import "github.com/crawlkit/gateway"
//
//	cfg := gateway.Config{StreamName: "CRAWL"}
//	gw, err := gateway.New(&cfg, natsConn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := gw.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer gw.Stop(context.Background())
//
//	// Hand each accepted connection to the gateway; wsconn provides a
//	// gorilla/websocket adapter and HTTP upgrade handler.
//	gw.HandleConnection(ctx, conn)
//
// # Architecture
//
//   - Connection registry: an in-memory bidirectional index between user
//     identities and live connections. One per process, ephemeral, at most
//     one connection per identity (newer authentications supersede older
//     connections with a distinguishing close code).
//   - Request ledger: a JetStream KV bucket holding one self-describing
//     record per request, partitioned per user. Durable source of truth;
//     records are never deleted and the full history is replayed on every
//     handshake.
//   - Dispatcher: persists a Pending record, then publishes one work item
//     with correlation headers and a W3C trace token to the user's task
//     subject. Never publishes without a durable ledger entry.
//   - Correlator: a durable pull consumer on the result subject. Matches
//     each worker response back to its record, applies the terminal update
//     idempotently, and hands the updated record to the notifier. Tolerates
//     duplicate and out-of-order delivery by construction.
//   - Notifier and handshake: pushes updates to live connections; offline
//     users catch up through the handshake replay on their next
//     authentication.
//
// # Delivery Semantics
//
// The broker hop is at-least-once. The ledger's monotonic status machine
// (Pending → InProgress → Completed/Failed, terminal states immutable)
// makes redelivered worker events no-ops, so client-visible state never
// regresses. Work subjects are partitioned by user identity: one user's
// requests are processed in submission order, different users proceed
// independently.
package gateway

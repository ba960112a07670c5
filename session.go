package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/crawlkit/gateway/types"
)

// HandleConnection is the per-connection dispatch entry point.
//
// It runs the connection's read loop until the client disconnects, the
// context is cancelled, or a protocol violation forces a close. Before
// authentication only the authenticate event is recognized; afterwards
// only submitRequest. Everything else is a protocol violation: the client
// gets one error event and the connection is closed (default-closed
// posture toward untrusted input).
//
// Errors on one connection never affect other connections or the
// process; HandleConnection recovers everything at this boundary and
// simply returns. The connection is always unbound from the registry on
// the way out, including abnormal closure, so registry growth stays
// bounded by live connections.
//
// Call this once per accepted connection, typically from the transport's
// accept handler. It blocks for the connection's lifetime.
func (g *Gateway) HandleConnection(ctx context.Context, conn types.Conn) {
	defer func() {
		if identity, ok := g.registry.Unbind(conn); ok {
			g.logger.Debug("connection unbound", "identity", identity)
		}
	}()

	var identity string
	authenticated := false

	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			g.logger.Debug("connection closed", "identity", identity, "error", err)

			return
		}

		env, err := types.DecodeEnvelope(raw)
		if err != nil {
			g.protocolViolation(conn, "envelope", "malformed envelope")

			return
		}

		switch {
		case !authenticated && env.Event == types.EventAuthenticate:
			payload, err := types.DecodeAuthenticate(env.Data)
			if err != nil {
				g.protocolViolation(conn, "payload", "invalid authenticate payload")

				return
			}

			identity = payload.UserIdentity
			if err := g.handshake(ctx, conn, identity); err != nil {
				g.logger.Error("handshake replay failed", "identity", identity, "error", err)
				g.sendError(conn, "request history unavailable")
				_ = conn.Close(types.CloseInternalError, "handshake failed")

				return
			}
			authenticated = true

		case authenticated && env.Event == types.EventSubmitRequest:
			payload, err := types.DecodeSubmitRequest(env.Data)
			if err != nil {
				g.protocolViolation(conn, "payload", "invalid submitRequest payload")

				return
			}

			if _, err := g.Submit(ctx, identity, payload.TargetURL, ""); err != nil {
				if errors.Is(err, ErrInvalidTargetURL) {
					g.protocolViolation(conn, "payload", "invalid targetUrl")

					return
				}

				// Ledger unavailable: nothing was persisted or published.
				// The connection itself is healthy, so report and keep it.
				g.logger.Error("submission rejected", "identity", identity, "error", err)
				g.sendError(conn, "request could not be accepted")
			}

		default:
			g.protocolViolation(conn, "event", fmt.Sprintf("unexpected event %q", env.Event))

			return
		}
	}
}

// handshake binds the connection and replays the user's full request
// history as a sequence of requestUpdate events, in creation order, so a
// reconnecting client fully reconstructs its state without a separate
// diff protocol.
//
// Binding happens first: results completing during the replay are pushed
// live, and the ledger read below still includes everything completed
// before the bind, so the client converges either way (records are
// idempotent by id).
func (g *Gateway) handshake(ctx context.Context, conn types.Conn, identity string) error {
	g.registry.Bind(identity, conn)

	records, err := g.ledger.GetAllForUser(ctx, identity)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	for _, rec := range records {
		if err := conn.Send(types.EventRequestUpdate, types.RequestUpdateData{Record: rec}); err != nil {
			return fmt.Errorf("failed to push replay event: %w", err)
		}
	}

	g.metrics.RecordHandshakeReplaySize(len(records))
	g.logger.Info("session established", "identity", identity, "replayedRecords", len(records))

	return nil
}

// protocolViolation reports a violation to the client and closes the
// connection.
func (g *Gateway) protocolViolation(conn types.Conn, kind, message string) {
	g.metrics.IncrementProtocolViolations(kind)
	g.logger.Warn("closing connection on protocol violation", "kind", kind, "detail", message)
	g.sendError(conn, message)
	_ = conn.Close(types.CloseProtocolViolation, "protocol violation")
}

// sendError best-effort pushes an error event; the connection may already
// be gone.
func (g *Gateway) sendError(conn types.Conn, message string) {
	if err := conn.Send(types.EventError, types.ErrorData{Message: message}); err != nil {
		g.logger.Debug("failed to send error event", "error", err)
	}
}

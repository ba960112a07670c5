package gateway

import "github.com/crawlkit/gateway/types"

// notify pushes one requestUpdate event carrying the full record to the
// user's live connection, if one exists. With no live connection it is a
// no-op: the ledger remains the source of truth for a later handshake.
//
// Push failures are logged and otherwise ignored; a connection that
// vanished mid-push is unbound by its own read loop, and the record is
// already durable. Notifying twice with the same record is harmless.
func (g *Gateway) notify(rec types.CrawlRequest) {
	conn, ok := g.registry.ConnByIdentity(rec.UserIdentity)
	if !ok {
		g.metrics.IncrementNotifications(false)

		return
	}

	if err := conn.Send(types.EventRequestUpdate, types.RequestUpdateData{Record: rec}); err != nil {
		g.logger.Warn("failed to push request update",
			"id", rec.ID, "identity", rec.UserIdentity, "error", err)
		g.metrics.IncrementNotifications(false)

		return
	}

	g.metrics.IncrementNotifications(true)
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/crawlkit/gateway/internal/ledger"
	"github.com/crawlkit/gateway/internal/tracectx"
	"github.com/crawlkit/gateway/types"
)

// runResultLoop pulls worker responses from the durable result consumer
// until ctx is cancelled, recreating the message iterator on transient
// failures.
//
// All consumption errors are fully recovered here: a bad message is
// disposed of and the loop moves on, so one poisoned event never stalls
// unrelated messages.
func (g *Gateway) runResultLoop(ctx context.Context) {
	for {
		iter, err := g.consumer.Messages(
			jetstream.PullMaxMessages(g.cfg.BatchSize),
			jetstream.PullExpiry(g.cfg.FetchTimeout),
			jetstream.PullHeartbeat(g.cfg.FetchTimeout/2),
		)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			g.logger.Error("failed to create result iterator", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(g.cfg.RetryBackoff):
				continue
			}
		}

		for {
			select {
			case <-ctx.Done():
				iter.Stop()

				return
			default:
			}

			msg, err := iter.Next()
			if err != nil {
				iter.Stop()
				if errors.Is(err, jetstream.ErrMsgIteratorClosed) ||
					errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					if ctx.Err() != nil {
						return
					}
					// Iterator died underneath us; recreate it.
					break
				}
				if errors.Is(err, jetstream.ErrNoHeartbeat) {
					g.logger.Warn("result loop lost pull heartbeat, recreating iterator")

					break
				}
				g.logger.Warn("result iterator error, recreating", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(g.cfg.RetryBackoff):
				}

				break
			}

			g.handleWorkerEvent(ctx, msg)
		}
	}
}

// handleWorkerEvent correlates one worker response back to its ledger
// record and hands the updated record to the notifier.
//
// Disposition rules:
//   - missing correlation headers or unparsable body/trace token: log the
//     raw payload at error severity and Term (unrecoverable, never
//     redeliver)
//   - response for an unknown request: log and Term (defensive; there is
//     a valid partition key but nothing to update)
//   - ledger unreachable: Nak, relying on broker redelivery as the retry
//     mechanism
//   - otherwise: apply the terminal update idempotently, notify, Ack
//
// Safe under redelivery: the ledger's terminal-state guard plus the
// notifier's push-the-stored-record semantics make re-processing the
// same event harmless.
func (g *Gateway) handleWorkerEvent(ctx context.Context, msg jetstream.Msg) {
	headers := msg.Headers()
	id := headers.Get(types.HeaderRequestID)
	identity := headers.Get(types.HeaderUserIdentity)
	if id == "" || identity == "" {
		g.logger.Error("worker event missing correlation headers, discarding",
			"subject", msg.Subject(), "payload", string(msg.Data()))
		g.metrics.IncrementWorkerEvents("malformed")
		_ = msg.Term()

		return
	}

	// Trace context is optional on responses; when present it must parse.
	traceID := ""
	if token := headers.Get(types.HeaderTraceparent); token != "" {
		parsed, err := tracectx.Parse(token)
		if err != nil {
			g.logger.Error("worker event carries unparsable trace token, discarding",
				"id", id, "identity", identity, "token", token, "payload", string(msg.Data()))
			g.metrics.IncrementWorkerEvents("malformed")
			_ = msg.Term()

			return
		}
		traceID = parsed.TraceID
	}

	var result types.WorkerResult
	if err := json.Unmarshal(msg.Data(), &result); err != nil {
		g.logger.Error("worker event body unparsable, discarding",
			"id", id, "identity", identity, "payload", string(msg.Data()), "error", err)
		g.metrics.IncrementWorkerEvents("malformed")
		_ = msg.Term()

		return
	}

	update := types.CrawlRequest{ID: id, UserIdentity: identity}
	outcome := "completed"
	if result.Success {
		update.Status = types.StatusCompleted
		update.Result = result.Result
	} else {
		update.Status = types.StatusFailed
		update.ErrorDetail = result.ErrorDetail
		outcome = "failed"
	}

	updated, changed, err := g.ledger.Update(ctx, update)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			g.logger.Warn("worker event for unknown request, discarding", "id", id, "identity", identity)
			g.metrics.IncrementWorkerEvents("orphaned")
			_ = msg.Term()

			return
		}

		g.logger.Error("ledger unavailable, leaving worker event for redelivery", "id", id, "error", err)
		g.metrics.IncrementWorkerEvents("store_unavailable")
		_ = msg.Nak()

		return
	}

	if !changed {
		// Duplicate or out-of-order delivery; the stored terminal record
		// wins and the client may legitimately be notified again with
		// identical content.
		outcome = "duplicate"
	}
	g.metrics.IncrementWorkerEvents(outcome)

	g.logger.Debug("worker event applied",
		"id", id, "identity", identity, "status", updated.Status, "changed", changed, "traceId", traceID)

	g.notify(updated)
	_ = msg.Ack()
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/crawlkit/gateway/internal/tracectx"
	"github.com/crawlkit/gateway/types"
)

// Submit accepts a new work request on behalf of identity: it persists a
// Pending record in the ledger and publishes one correlated work item to
// the user's task subject.
//
// incomingTraceToken optionally carries the caller's W3C trace context;
// the published work item gets a child token of it (same trace, fresh
// span). When the token is empty or unparsable a new root trace is
// minted, so every work item carries trace context either way.
//
// If the ledger append fails, Submit aborts before publishing and returns
// ErrStoreUnavailable: a work item must never exist without a durable
// ledger entry. The reverse gap is accepted: if the publish fails after a
// successful append, the record remains Pending, the failure is logged at
// error severity and counted, and no automatic retry happens. The client
// sees the Pending record on its next handshake.
//
// Returns the generated request id.
func (g *Gateway) Submit(ctx context.Context, identity, targetURL, incomingTraceToken string) (string, error) {
	if err := validateTargetURL(targetURL); err != nil {
		return "", err
	}

	g.mu.Lock()
	started := g.ledger != nil
	g.mu.Unlock()
	if !started {
		return "", ErrNotStarted
	}

	rec := types.CrawlRequest{
		ID:           g.newID(),
		UserIdentity: identity,
		TargetURL:    targetURL,
		Status:       types.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	if err := g.ledger.Append(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	g.metrics.IncrementSubmitted()

	// Immediate Pending feedback to the submitting client, if connected.
	// The ledger is authoritative either way.
	g.notify(rec)

	msg := &nats.Msg{
		Subject: g.taskSubject(identity),
		Header:  nats.Header{},
	}
	msg.Header.Set(types.HeaderRequestID, rec.ID)
	msg.Header.Set(types.HeaderUserIdentity, rec.UserIdentity)
	msg.Header.Set(types.HeaderCreatedAt, rec.CreatedAt.Format(time.RFC3339Nano))
	if token, err := g.outgoingTraceToken(incomingTraceToken); err == nil {
		msg.Header.Set(types.HeaderTraceparent, token.String())
	} else {
		// Random source failure. The work item still goes out; losing a
		// trace is better than losing the request.
		g.logger.Error("failed to mint trace token", "id", rec.ID, "error", err)
	}

	body, err := json.Marshal(types.WorkItem{TargetURL: targetURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal work item: %w", err)
	}
	msg.Data = body

	if _, err := g.js.PublishMsg(ctx, msg); err != nil {
		// Known at-least-once gap: the record is durable but no work item
		// exists. Surfaced via metrics and logs rather than retried.
		g.metrics.IncrementPublishFailures()
		g.logger.Error("failed to publish work item, record remains pending",
			"id", rec.ID, "identity", identity, "subject", msg.Subject, "error", err)

		return rec.ID, nil
	}

	g.logger.Debug("work item published", "id", rec.ID, "identity", identity, "subject", msg.Subject)

	return rec.ID, nil
}

// outgoingTraceToken derives the trace token for the broker hop: a child
// of the incoming token when one parses, a fresh sampled root otherwise.
func (g *Gateway) outgoingTraceToken(incoming string) (tracectx.Token, error) {
	if incoming != "" {
		if parent, err := tracectx.Parse(incoming); err == nil {
			return parent.Child()
		}
		g.logger.Debug("unparsable incoming trace token, starting new trace", "token", incoming)
	}

	return tracectx.NewRoot(true)
}

// validateTargetURL accepts absolute http(s) URLs only.
func validateTargetURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTargetURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidTargetURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidTargetURL)
	}

	return nil
}

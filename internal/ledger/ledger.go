// Package ledger implements the durable per-user request store on top of
// a NATS JetStream KeyValue bucket.
//
// Layout: one logical partition per user identity, one entry per request
// id within the partition. Keys are "<base64url(identity)>.<id>" so
// arbitrary identities (emails and the like) stay within the KV key
// charset while remaining prefix-listable per user. Values are the full
// self-describing JSON record.
//
// The ledger is the durable source of truth surviving process restarts.
// Records are never deleted.
package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/crawlkit/gateway/types"
)

// Sentinel errors returned by the Store.
var (
	// ErrUnavailable is returned when the backing KV store is unreachable
	// or an operation fails for infrastructure reasons.
	ErrUnavailable = errors.New("ledger store unavailable")

	// ErrNotFound is returned when no record exists for the given
	// identity and id.
	ErrNotFound = errors.New("ledger record not found")

	// ErrDuplicateID is returned when appending a record whose id already
	// exists within the user's partition.
	ErrDuplicateID = errors.New("ledger record id already exists")
)

// casRetries bounds the read-modify-write loop in Update. Contention on a
// single record is rare (one correlator loop), so a handful of attempts
// is plenty.
const casRetries = 5

// Store is a JetStream-KV-backed request ledger.
type Store struct {
	kv     jetstream.KeyValue
	logger types.Logger
}

// New creates a Store over an existing KV bucket.
func New(kv jetstream.KeyValue, logger types.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Append writes a new record under the user's partition.
//
// Returns ErrDuplicateID if a record with the same id already exists and
// ErrUnavailable if the backing store is unreachable. Callers must not
// publish work for a request whose append failed.
func (s *Store) Append(ctx context.Context, rec types.CrawlRequest) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}

	if _, err := s.kv.Create(ctx, key(rec.UserIdentity, rec.ID), data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}

		return fmt.Errorf("%w: create %s: %w", ErrUnavailable, rec.ID, err)
	}

	return nil
}

// Update applies a status transition to the record identified by
// rec.UserIdentity and rec.ID, enforcing the terminal-state invariant.
//
// Only the status, result, and error detail are taken from rec; id,
// identity, target URL, and creation time are immutable and preserved
// from the stored record, so replays of the same worker event always
// produce identical content.
//
// An update that would move a terminal record anywhere, or that is not a
// valid monotonic transition, is silently ignored and logged, never an
// error: duplicate broker delivery is expected. The stored record is
// returned along with changed=false in that case.
func (s *Store) Update(ctx context.Context, rec types.CrawlRequest) (types.CrawlRequest, bool, error) {
	k := key(rec.UserIdentity, rec.ID)

	for attempt := 0; attempt < casRetries; attempt++ {
		entry, err := s.kv.Get(ctx, k)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				return types.CrawlRequest{}, false, fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
			}

			return types.CrawlRequest{}, false, fmt.Errorf("%w: get %s: %w", ErrUnavailable, rec.ID, err)
		}

		var current types.CrawlRequest
		if err := json.Unmarshal(entry.Value(), &current); err != nil {
			return types.CrawlRequest{}, false, fmt.Errorf("failed to unmarshal record %s: %w", rec.ID, err)
		}

		if !current.Status.CanTransitionTo(rec.Status) {
			s.logger.Debug("ignoring non-monotonic ledger update",
				"id", rec.ID, "current", current.Status, "requested", rec.Status)

			return current, false, nil
		}

		updated := current
		updated.Status = rec.Status
		updated.Result = rec.Result
		updated.ErrorDetail = rec.ErrorDetail

		data, err := json.Marshal(updated)
		if err != nil {
			return types.CrawlRequest{}, false, fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
		}

		_, err = s.kv.Update(ctx, k, data, entry.Revision())
		if err == nil {
			return updated, true, nil
		}

		// Revision conflict: someone else updated between our Get and
		// Update. Re-read and re-apply the guard.
		if isWrongRevision(err) {
			continue
		}

		return types.CrawlRequest{}, false, fmt.Errorf("%w: update %s: %w", ErrUnavailable, rec.ID, err)
	}

	return types.CrawlRequest{}, false, fmt.Errorf("%w: update %s: revision conflicts exhausted", ErrUnavailable, rec.ID)
}

// GetByID returns the record for the given identity and id.
func (s *Store) GetByID(ctx context.Context, identity, id string) (types.CrawlRequest, error) {
	entry, err := s.kv.Get(ctx, key(identity, id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return types.CrawlRequest{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		return types.CrawlRequest{}, fmt.Errorf("%w: get %s: %w", ErrUnavailable, id, err)
	}

	var rec types.CrawlRequest
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return types.CrawlRequest{}, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}

	return rec, nil
}

// GetAllForUser returns all of a user's records in creation order
// (creation time, then id for same-instant ties). Order does not reflect
// completion time; each record carries its own current status.
func (s *Store) GetAllForUser(ctx context.Context, identity string) ([]types.CrawlRequest, error) {
	lister, err := s.kv.ListKeysFiltered(ctx, partitionPrefix(identity)+".>")
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: list keys: %w", ErrUnavailable, err)
	}

	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}

	records := make([]types.CrawlRequest, 0, len(keys))
	for _, k := range keys {
		entry, err := s.kv.Get(ctx, k)
		if err != nil {
			// A key listed a moment ago should still exist (records are
			// never deleted); treat any failure as store trouble.
			return nil, fmt.Errorf("%w: get %s: %w", ErrUnavailable, k, err)
		}

		var rec types.CrawlRequest
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record at key %s: %w", k, err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}

		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

// partitionPrefix encodes a user identity into a KV-safe key token.
func partitionPrefix(identity string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(identity))
}

func key(identity, id string) string {
	return partitionPrefix(identity) + "." + id
}

// isWrongRevision reports whether err is a KV compare-and-swap conflict.
func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}

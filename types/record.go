package types

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a CrawlRequest.
//
// Transitions are monotonic: Pending → InProgress → {Completed, Failed}.
// The InProgress hop is optional. Completed and Failed are terminal; once a
// record reaches a terminal status, further transitions are no-ops.
type Status string

// Crawl request lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}

	return false
}

// Terminal reports whether s is a final state that no update may leave.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next preserves the
// monotonic lifecycle. A transition from a state to itself is not a valid
// transition; callers treat it as a duplicate.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next.Terminal()
	case StatusInProgress:
		return next.Terminal()
	default:
		return false
	}
}

// CrawlRequest is the durable unit of work-tracking state for one
// client-submitted request.
//
// The stored JSON form is self-describing: the status travels as data, so a
// record read back from the ledger needs no external schema. Records are
// never deleted; the per-id history is an append-only audit trail replayed
// in full on handshake.
type CrawlRequest struct {
	// ID uniquely identifies the request. Immutable once assigned.
	ID string `json:"id"`

	// UserIdentity is the opaque identity of the submitting user. It is
	// the ledger partition key and the registry key.
	UserIdentity string `json:"userIdentity"`

	// TargetURL is the URL the worker is asked to crawl.
	TargetURL string `json:"targetUrl"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Result holds the opaque worker payload for completed requests.
	Result json.RawMessage `json:"result,omitempty"`

	// ErrorDetail describes the failure for failed requests.
	ErrorDetail string `json:"errorDetail,omitempty"`

	// CreatedAt is when the request was accepted by the gateway.
	CreatedAt time.Time `json:"createdAt"`
}

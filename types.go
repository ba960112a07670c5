package gateway

import "github.com/crawlkit/gateway/types"

// Re-export types from the types subpackage.
//
// This file provides a stable public API for the library's core types and
// interfaces. Internal packages depend on the types subpackage directly,
// which avoids import cycles while still giving consumers convenient
// gateway.CrawlRequest, gateway.Logger, etc.
type (
	CrawlRequest = types.CrawlRequest
	Status       = types.Status
	Envelope     = types.Envelope
	WorkItem     = types.WorkItem
	WorkerResult = types.WorkerResult
)

// Re-export interfaces from the types subpackage for convenience.
type (
	Conn             = types.Conn
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export lifecycle states from the types subpackage.
const (
	StatusPending    = types.StatusPending
	StatusInProgress = types.StatusInProgress
	StatusCompleted  = types.StatusCompleted
	StatusFailed     = types.StatusFailed
)

// Re-export protocol event names from the types subpackage.
const (
	EventAuthenticate  = types.EventAuthenticate
	EventSubmitRequest = types.EventSubmitRequest
	EventRequestUpdate = types.EventRequestUpdate
	EventError         = types.EventError
)

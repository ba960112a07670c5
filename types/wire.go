package types

import "encoding/json"

// Broker message header names shared by the gateway and workers.
//
// A work item (gateway → worker) carries all four headers; a worker
// response (worker → gateway) echoes HeaderRequestID, HeaderUserIdentity
// and HeaderCreatedAt back unchanged. HeaderCreatedAt is formatted as
// RFC 3339 / ISO-8601. HeaderTraceparent carries the W3C trace context
// token so a request's trace survives the asynchronous hop.
const (
	HeaderRequestID    = "Request-Id"
	HeaderUserIdentity = "User-Identity"
	HeaderCreatedAt    = "Created-At"
	HeaderTraceparent  = "traceparent"
)

// WorkItem is the body of a work item published to workers.
type WorkItem struct {
	TargetURL string `json:"targetUrl"`
}

// WorkerResult is the body of a worker response consumed by the gateway.
//
// Success selects the terminal status: true yields a Completed record
// carrying Result, false yields a Failed record carrying ErrorDetail. The
// result payload is opaque to the gateway and stored as-is.
type WorkerResult struct {
	Success     bool            `json:"success"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorDetail string          `json:"errorDetail,omitempty"`
}

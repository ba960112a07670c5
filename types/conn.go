package types

import "context"

// Close codes sent when the gateway closes a connection. Codes in the
// 4000-4999 range are application-defined per RFC 6455.
const (
	// CloseGoingAway is sent to every live connection during gateway
	// shutdown.
	CloseGoingAway = 1001

	// CloseSuperseded is sent to the older connection when a newer
	// authentication for the same identity arrives. It is deliberate
	// eviction, not an error; the losing client can decide whether to
	// reconnect.
	CloseSuperseded = 4001

	// CloseProtocolViolation is sent after an error event when a client
	// breaks the connection protocol (malformed envelope, event before
	// authentication, failed payload validation).
	CloseProtocolViolation = 4002

	// CloseInternalError is sent when the gateway cannot serve the
	// connection for reasons that are not the client's fault, such as the
	// ledger being unreachable during handshake replay.
	CloseInternalError = 1011
)

// Conn abstracts one live bidirectional client connection.
//
// The transport accepting connections is an external collaborator; the
// gateway only needs to receive raw frames, push structured events, and
// close with a code. Implementations must be safe for Send/Close from
// goroutines other than the one calling Receive, because the Notifier
// pushes updates concurrently with the connection's read loop.
//
// Values used as registry keys must have a comparable dynamic type
// (pointers are fine).
type Conn interface {
	// Receive blocks until the next raw inbound frame arrives, the
	// connection closes, or ctx is done. A closed connection yields a
	// non-nil error; there is no partial read.
	Receive(ctx context.Context) ([]byte, error)

	// Send pushes one structured event to the client. data is marshaled
	// as the envelope's data field.
	Send(event string, data any) error

	// Close closes the connection with the given close code and reason.
	// Closing an already-closed connection is a no-op.
	Close(code int, reason string) error
}

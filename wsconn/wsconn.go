// Package wsconn adapts gorilla/websocket connections to the gateway's
// types.Conn interface and provides an http.Handler that upgrades
// requests and hands the resulting connections to the gateway.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crawlkit/gateway/types"
)

// writeTimeout bounds each outbound frame so one slow client cannot wedge
// the notifier.
const writeTimeout = 10 * time.Second

// ErrClosed is returned by Send and Receive after the connection closed.
var ErrClosed = errors.New("websocket connection closed")

// Conn wraps a *websocket.Conn as a types.Conn.
//
// gorilla/websocket permits at most one concurrent writer, so all writes
// (events and close frames) are serialized with a mutex. Receive must
// only be called from a single goroutine, which matches the gateway's
// one-read-loop-per-connection model.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

// Compile-time assertion that Conn implements types.Conn.
var _ types.Conn = (*Conn)(nil)

// New wraps an already-upgraded websocket connection.
func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Receive blocks for the next text or binary frame. The underlying read
// unblocks when the peer or Close tears the connection down; ctx is
// checked between frames.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Send marshals and writes one protocol envelope.
func (c *Conn) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(types.Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a close frame with the given code and reason, then closes
// the underlying connection. Closing twice is a no-op.
func (c *Conn) Close(code int, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	deadline := time.Now().Add(writeTimeout)
	message := websocket.FormatCloseMessage(code, reason)
	// Best effort; the peer may already be gone.
	_ = c.ws.WriteControl(websocket.CloseMessage, message, deadline)

	return c.ws.Close()
}

// ConnHandler consumes accepted connections; *gateway.Gateway satisfies
// it.
type ConnHandler interface {
	HandleConnection(ctx context.Context, conn types.Conn)
}

// Handler upgrades HTTP requests to websocket connections and runs each
// one through the gateway until it closes.
type Handler struct {
	gateway  ConnHandler
	upgrader websocket.Upgrader
	logger   types.Logger
}

// NewHandler creates an upgrade handler delivering connections to gw.
func NewHandler(gw ConnHandler, logger types.Logger) *Handler {
	return &Handler{
		gateway: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// ServeHTTP implements http.Handler. It blocks for the connection's
// lifetime; the request context cancels the session when the HTTP server
// shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)

		return
	}

	conn := New(ws)
	defer func() {
		_ = conn.Close(types.CloseGoingAway, "")
	}()

	h.gateway.HandleConnection(r.Context(), conn)
}

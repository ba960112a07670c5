// Package registry maintains the in-memory bidirectional index between
// user identities and live connections. It is purely ephemeral: the
// process starts with an empty registry and every entry dies with its
// connection.
package registry

import (
	"sync"

	"github.com/crawlkit/gateway/types"
)

// Registry is the per-process connection index. At most one live
// connection per identity and at most one identity per connection.
//
// Both directions of the index are mutated inside a single critical
// section, so observers never see a transient half-updated state. All
// methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]types.Conn
	byConn     map[types.Conn]string

	logger  types.Logger
	metrics types.MetricsCollector
}

// New creates an empty registry.
func New(logger types.Logger, metrics types.MetricsCollector) *Registry {
	return &Registry{
		byIdentity: make(map[string]types.Conn),
		byConn:     make(map[types.Conn]string),
		logger:     logger,
		metrics:    metrics,
	}
}

// Bind records conn as the live connection for identity.
//
// If the identity already has a bound connection, that connection is
// evicted first: both its index entries are removed and it is closed with
// the CloseSuperseded code so the losing client can tell deliberate
// eviction from an error. The close happens after the index mutation, and
// outside the lock, because transport close handlers commonly call back
// into Unbind.
func (r *Registry) Bind(identity string, conn types.Conn) {
	r.mu.Lock()
	evicted, hadPrevious := r.byIdentity[identity]
	if hadPrevious {
		delete(r.byConn, evicted)
	}
	r.byIdentity[identity] = conn
	r.byConn[conn] = identity
	size := len(r.byIdentity)
	r.mu.Unlock()

	r.metrics.SetActiveConnections(size)

	if hadPrevious && evicted != conn {
		r.logger.Info("superseding previous connection", "identity", identity)
		r.metrics.IncrementSupersededConnections()
		if err := evicted.Close(types.CloseSuperseded, "superseded by newer connection"); err != nil {
			r.logger.Debug("failed to close superseded connection", "identity", identity, "error", err)
		}
	}
}

// Unbind removes conn from both directions of the index and returns the
// identity it was bound to. Unbinding a connection that was never bound
// (or already unbound) is a no-op returning ok=false.
//
// Must be invoked on every connection-close event, including abnormal
// closure, to prevent unbounded growth.
func (r *Registry) Unbind(conn types.Conn) (identity string, ok bool) {
	r.mu.Lock()
	identity, ok = r.byConn[conn]
	if ok {
		// Only remove the identity entry if it still points at this
		// connection; a superseding Bind may already have replaced it.
		if current, bound := r.byIdentity[identity]; bound && current == conn {
			delete(r.byIdentity, identity)
		}
		delete(r.byConn, conn)
	}
	size := len(r.byIdentity)
	r.mu.Unlock()

	r.metrics.SetActiveConnections(size)

	return identity, ok
}

// ConnByIdentity returns the live connection for identity, if any.
func (r *Registry) ConnByIdentity(identity string) (types.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byIdentity[identity]

	return conn, ok
}

// IdentityByConn returns the identity bound to conn, if any.
func (r *Registry) IdentityByConn(conn types.Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byConn[conn]

	return identity, ok
}

// Len returns the number of bound identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byIdentity)
}

// CloseAll closes every bound connection with the given code and clears
// the index. Used during gateway shutdown.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	conns := make([]types.Conn, 0, len(r.byConn))
	for conn := range r.byConn {
		conns = append(conns, conn)
	}
	r.byIdentity = make(map[string]types.Conn)
	r.byConn = make(map[types.Conn]string)
	r.mu.Unlock()

	r.metrics.SetActiveConnections(0)

	for _, conn := range conns {
		if err := conn.Close(code, reason); err != nil {
			r.logger.Debug("failed to close connection during shutdown", "error", err)
		}
	}
}

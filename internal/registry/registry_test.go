package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crawlkit/gateway/internal/logging"
	"github.com/crawlkit/gateway/internal/metrics"
	"github.com/crawlkit/gateway/types"
)

type stubConn struct {
	mu        sync.Mutex
	closed    bool
	closeCode int
}

var _ types.Conn = (*stubConn)(nil)

func (c *stubConn) Receive(_ context.Context) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (c *stubConn) Send(_ string, _ any) error { return nil }

func (c *stubConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.closeCode = code
	}

	return nil
}

func (c *stubConn) closedWith() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed, c.closeCode
}

func newRegistry() *Registry {
	return New(logging.NewNop(), metrics.NewNop())
}

func TestBindAndLookup(t *testing.T) {
	r := newRegistry()
	conn := &stubConn{}

	r.Bind("a@example.com", conn)

	got, ok := r.ConnByIdentity("a@example.com")
	require.True(t, ok)
	require.Same(t, conn, got.(*stubConn))

	identity, ok := r.IdentityByConn(conn)
	require.True(t, ok)
	require.Equal(t, "a@example.com", identity)
	require.Equal(t, 1, r.Len())
}

func TestLookupNotFound(t *testing.T) {
	r := newRegistry()

	_, ok := r.ConnByIdentity("nobody@example.com")
	require.False(t, ok)

	_, ok = r.IdentityByConn(&stubConn{})
	require.False(t, ok)
}

func TestBindSupersedesPreviousConnection(t *testing.T) {
	r := newRegistry()
	c1 := &stubConn{}
	c2 := &stubConn{}

	r.Bind("a@example.com", c1)
	r.Bind("a@example.com", c2)

	closed, code := c1.closedWith()
	require.True(t, closed)
	require.Equal(t, types.CloseSuperseded, code)

	got, ok := r.ConnByIdentity("a@example.com")
	require.True(t, ok)
	require.Same(t, c2, got.(*stubConn))

	// The evicted connection no longer resolves to an identity.
	_, ok = r.IdentityByConn(c1)
	require.False(t, ok)
	require.Equal(t, 1, r.Len())
}

func TestUnbind(t *testing.T) {
	r := newRegistry()
	conn := &stubConn{}
	r.Bind("a@example.com", conn)

	identity, ok := r.Unbind(conn)
	require.True(t, ok)
	require.Equal(t, "a@example.com", identity)
	require.Equal(t, 0, r.Len())

	_, ok = r.ConnByIdentity("a@example.com")
	require.False(t, ok)
}

func TestUnbindNeverBoundIsNoOp(t *testing.T) {
	r := newRegistry()
	r.Bind("a@example.com", &stubConn{})

	_, ok := r.Unbind(&stubConn{})
	require.False(t, ok)
	require.Equal(t, 1, r.Len())
}

func TestUnbindSupersededConnectionKeepsNewBinding(t *testing.T) {
	r := newRegistry()
	c1 := &stubConn{}
	c2 := &stubConn{}
	r.Bind("a@example.com", c1)
	r.Bind("a@example.com", c2)

	// The superseded connection's read loop unbinds late; the newer
	// binding must survive.
	_, _ = r.Unbind(c1)

	got, ok := r.ConnByIdentity("a@example.com")
	require.True(t, ok)
	require.Same(t, c2, got.(*stubConn))
}

func TestCloseAll(t *testing.T) {
	r := newRegistry()
	c1 := &stubConn{}
	c2 := &stubConn{}
	r.Bind("a@example.com", c1)
	r.Bind("b@example.com", c2)

	r.CloseAll(types.CloseGoingAway, "shutdown")

	require.Equal(t, 0, r.Len())
	for _, c := range []*stubConn{c1, c2} {
		closed, code := c.closedWith()
		require.True(t, closed)
		require.Equal(t, types.CloseGoingAway, code)
	}
}

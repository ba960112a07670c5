package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/gateway/internal/logging"
	"github.com/crawlkit/gateway/types"
)

// echoHandler is a minimal ConnHandler: it sends back every received
// frame as an error event, then mirrors the gateway's close discipline
// when told to.
type echoHandler struct {
	closeCode int
}

func (h *echoHandler) HandleConnection(ctx context.Context, conn types.Conn) {
	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			return
		}
		if err := conn.Send(types.EventError, types.ErrorData{Message: string(raw)}); err != nil {
			return
		}
		if h.closeCode != 0 {
			_ = conn.Close(h.closeCode, "done")

			return
		}
	}
}

func dial(t *testing.T, handler *echoHandler) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(NewHandler(handler, logging.NewNop()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })

	return ws
}

func TestRoundTrip(t *testing.T) {
	ws := dial(t, &echoHandler{})

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)

	var env types.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	require.Equal(t, types.EventError, env.Event)

	var payload types.ErrorData
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Equal(t, "hello", payload.Message)
}

func TestCloseCodeReachesClient(t *testing.T) {
	ws := dial(t, &echoHandler{closeCode: types.CloseProtocolViolation})

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("x")))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	// First frame is the echoed event, then the close frame arrives.
	_, _, err := ws.ReadMessage()
	require.NoError(t, err)

	_, _, err = ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, types.CloseProtocolViolation, closeErr.Code)
}

func TestSendAfterCloseFails(t *testing.T) {
	handler := &echoHandler{}
	srv := httptest.NewServer(NewHandler(handler, logging.NewNop()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}

	conn := New(ws)
	require.NoError(t, conn.Close(types.CloseGoingAway, "bye"))
	require.NoError(t, conn.Close(types.CloseGoingAway, "bye"), "second close is a no-op")

	require.ErrorIs(t, conn.Send(types.EventError, types.ErrorData{Message: "late"}), ErrClosed)
}

func TestUpgradeRejectsPlainGET(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&echoHandler{}, logging.NewNop()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

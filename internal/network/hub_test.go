package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
)

func startHub(t *testing.T, ts *testServer) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ts.hub.Run(ctx)
	}()
	srv := httptest.NewServer(ts.router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + id
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Frame) bool) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func isResult(f Frame) bool { return f.Kind == FrameResult }

func TestWebSocketCommandsAndEvents(t *testing.T) {
	ts := newTestServer(t, false)
	srv := startHub(t, ts)
	id := ts.create(t).ID
	conn := dial(t, srv, id)

	require.NoError(t, conn.WriteJSON(engine.Command{Type: engine.CommandFill, Bucket: engine.BucketB}))

	var sawContent bool
	res := readUntil(t, conn, func(f Frame) bool {
		if f.Kind == FrameEvent && f.Event.Type == events.EventTypeBucketContentChange {
			sawContent = true
		}
		return isResult(f)
	})
	require.NotNil(t, res.Result)
	assert.Nil(t, res.Error)
	assert.Equal(t, engine.CommandFill, res.Result.Command)
	assert.Equal(t, 5, res.Result.Snapshot.Buckets[1].Content)

	if !sawContent {
		readUntil(t, conn, func(f Frame) bool {
			return f.Kind == FrameEvent && f.Event.Type == events.EventTypeBucketContentChange
		})
	}
	assert.Equal(t, 1, ts.hub.Count())
}

func TestWebSocketRejectedCommand(t *testing.T) {
	ts := newTestServer(t, false)
	srv := startHub(t, ts)
	id := ts.create(t).ID
	conn := dial(t, srv, id)

	require.NoError(t, conn.WriteJSON(engine.Command{Type: engine.CommandDump, Bucket: engine.BucketA}))
	res := readUntil(t, conn, isResult)
	require.NotNil(t, res.Error)
	assert.Equal(t, string(engine.KindNoOp), res.Error.Code)
	assert.Equal(t, "Begin", res.Result.Snapshot.MoveLabel)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	bad := readUntil(t, conn, func(f Frame) bool { return f.Kind == FrameError })
	assert.Equal(t, string(engine.KindInvalidCommand), bad.Error.Code)
}

func TestWebSocketUnknownSession(t *testing.T) {
	ts := newTestServer(t, false)
	srv := startHub(t, ts)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketClosedWithSession(t *testing.T) {
	ts := newTestServer(t, false)
	srv := startHub(t, ts)
	id := ts.create(t).ID
	conn := dial(t, srv, id)

	// A round trip guarantees the client is registered and subscribed.
	require.NoError(t, conn.WriteJSON(engine.Command{Type: engine.CommandSnapshot}))
	readUntil(t, conn, isResult)

	require.NoError(t, ts.engine.Close(id))
	readUntil(t, conn, func(f Frame) bool {
		return f.Kind == FrameEvent && f.Event.Type == events.EventTypeSessionClosed
	})

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)

	assert.Eventually(t, func() bool { return ts.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(nil, nil, nil, HubOptions{AllowedOrigins: []string{"http://game.local"}})

	req := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	req.Header.Set("Origin", "http://game.local")
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.local")
	assert.False(t, hub.checkOrigin(req))

	open := NewHub(nil, nil, nil, HubOptions{})
	assert.True(t, open.checkOrigin(req))
}

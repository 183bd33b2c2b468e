package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", hub.Handler())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub, url := startHub(t)

	c1 := dial(t, url)
	c2 := dial(t, url)

	frame, err := json.Marshal(map[string]any{
		"type":    "parking:update",
		"payload": map[string]any{"parking_id": 1, "available_spaces": 9},
	})
	require.NoError(t, err)

	// Registration goes through the hub loop; give it a beat.
	time.Sleep(50 * time.Millisecond)
	hub.Broadcast(frame)

	for _, conn := range []*websocket.Conn{c1, c2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, string(frame), string(msg))
	}
}

func TestDisconnectedClientIsDropped(t *testing.T) {
	hub, url := startHub(t)

	c1 := dial(t, url)
	c2 := dial(t, url)
	time.Sleep(50 * time.Millisecond)

	c1.Close()
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast([]byte(`{"type":"entry:created"}`))

	require.NoError(t, c2.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := c2.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "entry:created")
}

func TestConnectAfterShutdownReleasesHandler(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(runDone)
	}()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", hub.Handler())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("hub loop did not stop")
	}

	// Nobody drains register anymore; the handler must close the connection
	// instead of parking the goroutine forever.
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection should be closed once the hub is down")
}

func TestBroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub, _ := startHub(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Broadcast([]byte(`{"type":"parking:update"}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no clients connected")
	}
}

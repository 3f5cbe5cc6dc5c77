package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-office-trash/internal/event"
)

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubBroadcastsBusEvents(t *testing.T) {
	bus := event.NewBus()
	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	server := httptest.NewServer(http.HandlerFunc(hub.Serve))
	defer server.Close()

	all := dial(t, server, "")
	jobsOnly := dial(t, server, "?topic=job")

	// registration is asynchronous
	time.Sleep(50 * time.Millisecond)
	bus.Publish(event.New(event.TypeTrashRestored, map[string]string{"id": "t1"}, "u1"))
	bus.Publish(event.New(event.TypeJobCompleted, map[string]string{"job_id": "j1"}, "u1"))

	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first event.Event
	_, raw, err := all.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &first))
	assert.Equal(t, event.TypeTrashRestored, first.Type)

	require.NoError(t, jobsOnly.SetReadDeadline(time.Now().Add(2*time.Second)))
	var filtered event.Event
	_, raw, err = jobsOnly.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &filtered))
	assert.Equal(t, event.TypeJobCompleted, filtered.Type)
}

func TestHubStopsOnContextCancel(t *testing.T) {
	hub := NewHub(event.NewBus())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan error, 1)
	go func() { stopped <- hub.Run(ctx) }()
	cancel()

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

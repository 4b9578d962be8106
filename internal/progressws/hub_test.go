package progressws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/timetabled/internal/progress"
)

func dialJob(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_StreamsPublishedEventsToClient(t *testing.T) {
	bus := progress.New()
	hub := NewHub(bus)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeJob(w, r, "job-1")
	}))
	defer server.Close()

	conn := dialJob(t, server)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let ServeJob's Subscribe land before publishing
	bus.Publish("job-1", progress.Event{Stage: progress.StageCluster, FractionComplete: 0.1, Status: progress.StatusRunning})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "cluster")
}

func TestHub_SendsLatestEventOnConnect(t *testing.T) {
	bus := progress.New()
	bus.Publish("job-2", progress.Event{Stage: progress.StageGA, FractionComplete: 0.5, Status: progress.StatusRunning})
	hub := NewHub(bus)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeJob(w, r, "job-2")
	}))
	defer server.Close()

	conn := dialJob(t, server)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "ga")
}

func TestHub_ClosesAfterTerminalEvent(t *testing.T) {
	bus := progress.New()
	hub := NewHub(bus)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeJob(w, r, "job-3")
	}))
	defer server.Close()

	conn := dialJob(t, server)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	bus.Publish("job-3", progress.Event{Stage: progress.StageFinalize, FractionComplete: 1, Status: progress.StatusCompleted})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_ClientCountTracksConnections(t *testing.T) {
	bus := progress.New()
	hub := NewHub(bus)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeJob(w, r, "job-4")
	}))
	defer server.Close()

	assert.Equal(t, 0, hub.ClientCount())

	conn := dialJob(t, server)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

// Package progressws fans progress.Bus events out to websocket clients:
// each client is tracked in a mutex-guarded set, subscribes to the bus
// directly, and is served by its own read and write goroutines.
package progressws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jgirmay/timetabled/internal/progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected websocket subscriber of a single job's progress.
type client struct {
	id   string
	jobID string
	conn *websocket.Conn
	send chan progress.Event
	done chan struct{}
}

// Hub upgrades incoming HTTP requests to websocket connections and streams
// one job's progress.Event stream to each.
type Hub struct {
	bus *progress.Bus

	mu      sync.Mutex
	clients map[*client]bool
}

// NewHub wires a Hub to an existing progress.Bus.
func NewHub(bus *progress.Bus) *Hub {
	return &Hub{bus: bus, clients: make(map[*client]bool)}
}

// ServeJob upgrades r to a websocket and streams jobID's progress events to
// it until the client disconnects, a write fails, or an event with a
// completed, failed or cancelled status has been sent.
func (h *Hub) ServeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[progressws] upgrade failed: %v", err)
		return
	}

	c := &client{id: uuid.New().String(), jobID: jobID, conn: conn, send: make(chan progress.Event, 32), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	log.Printf("[progressws] client %s registered for job %s", c.id, jobID)

	if latest, ok := h.bus.Latest(jobID); ok {
		c.send <- latest
	}
	unsubscribe := h.bus.Subscribe(jobID, func(e progress.Event) {
		select {
		case c.send <- e:
		default:
			log.Printf("[progressws] client %s channel full, dropping event", c.id)
		}
	})

	go h.writeLoop(c, unsubscribe)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client, unsubscribe func()) {
	defer func() {
		unsubscribe()
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.conn.Close()
		log.Printf("[progressws] client %s unregistered", c.id)
	}()

	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.done:
			return
		case e, ok := <-c.send:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if e.Status == progress.StatusCompleted || e.Status == progress.StatusFailed || e.Status == progress.StatusCancelled {
				return
			}
		case <-heartbeat.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains and discards client messages; clients don't send
// anything meaningful, but the read is needed to detect disconnects.
func (h *Hub) readLoop(c *client) {
	defer close(c.done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount returns the number of currently connected clients, across
// every job.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

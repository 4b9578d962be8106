package progressws

import (
	"encoding/json"
	"net/http"
)

// Handlers exposes the Hub as plain net/http routes, mirroring
// pkg/http/handlers/quota_websocket.go's thin-handler-over-broadcaster shape.
type Handlers struct {
	hub *Hub
}

// NewHandlers wraps a Hub for HTTP registration.
func NewHandlers(hub *Hub) *Handlers {
	return &Handlers{hub: hub}
}

// HandleJobProgress upgrades the request to a websocket and streams
// jobID's progress events; the caller's route decides which job that is.
func (h *Handlers) HandleJobProgress(w http.ResponseWriter, r *http.Request, jobID string) {
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	h.hub.ServeJob(w, r, jobID)
}

// HandleHealthCheck reports how many progress websocket clients are
// currently connected, across every job.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            "healthy",
		"connected_clients": h.hub.ClientCount(),
	})
}

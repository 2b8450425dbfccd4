package handler

import (
	"net/http"
	"time"

	"github.com/ideate-ai/platform/internal/bus"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	busClient *bus.Client
	version   string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(busClient *bus.Client, version string) *HealthHandler {
	return &HealthHandler{
		busClient: busClient,
		version:   version,
	}
}

// Health handles GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   h.version,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	// Check bus connection
	if h.busClient == nil || !h.busClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "broadcast bus not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

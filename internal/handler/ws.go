package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ideate-ai/platform/internal/bus"
	"github.com/ideate-ai/platform/internal/middleware"
	"github.com/ideate-ai/platform/pkg/logger"
	"github.com/ideate-ai/platform/pkg/metrics"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second

	// wsSendBuffer bounds per-client backlog; a client that falls this far
	// behind is dropped rather than allowed to stall the broadcast.
	wsSendBuffer = 64
)

// WorkspaceHandler fans broadcast-bus events out to websocket clients.
type WorkspaceHandler struct {
	broadcaster *bus.Broadcaster
	logger      *logger.Logger
	upgrader    websocket.Upgrader
}

// NewWorkspaceHandler creates a new workspace websocket handler.
func NewWorkspaceHandler(broadcaster *bus.Broadcaster, log *logger.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		broadcaster: broadcaster,
		logger:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Workspace handles GET /api/ws/workspace?workspaceId=
//
// Each connected client receives the resource create/update/delete events of
// its workspace. Delivery is best effort; slow consumers are disconnected.
func (h *WorkspaceHandler) Workspace(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspaceId")
	if workspaceID == "" {
		workspaceID = middleware.GetWorkspaceID(r.Context())
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WorkspaceClientsActive.Inc()
	defer metrics.WorkspaceClientsActive.Dec()

	send := make(chan []byte, wsSendBuffer)
	sub, err := h.broadcaster.SubscribeWorkspace(workspaceID, func(data []byte) {
		select {
		case send <- data:
		default:
			// Slow consumer: closing send makes the write loop bail out.
			h.logger.Warn("dropping slow workspace client", "workspace_id", workspaceID)
			conn.Close()
		}
	})
	if err != nil {
		h.logger.Error("failed to subscribe workspace channel", "error", err, "workspace_id", workspaceID)
		return
	}
	defer sub.Unsubscribe()

	h.logger.Info("workspace client connected", "workspace_id", workspaceID)

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to observe close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			h.logger.Info("workspace client disconnected", "workspace_id", workspaceID)
			return

		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Run handles GET /api/ws/run?sessionId=
//
// Streams step events for a long-running agent operation.
func (h *WorkspaceHandler) Run(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WorkspaceClientsActive.Inc()
	defer metrics.WorkspaceClientsActive.Dec()

	send := make(chan []byte, wsSendBuffer)
	sub, err := h.broadcaster.SubscribeRun(sessionID, func(data []byte) {
		select {
		case send <- data:
		default:
			conn.Close()
		}
	})
	if err != nil {
		h.logger.Error("failed to subscribe run channel", "error", err, "session_id", sessionID)
		return
	}
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsPingInterval))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ideate-ai/platform/internal/agent"
	"github.com/ideate-ai/platform/internal/middleware"
	"github.com/ideate-ai/platform/pkg/logger"
	"github.com/ideate-ai/platform/pkg/metrics"
)

// AgentHandler handles the agent SSE stream and its out-of-band response
// endpoints.
type AgentHandler struct {
	manager *agent.Manager
	runner  *agent.Runner
	logger  *logger.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(manager *agent.Manager, runner *agent.Runner, log *logger.Logger) *AgentHandler {
	return &AgentHandler{
		manager: manager,
		runner:  runner,
		logger:  log,
	}
}

// Stream handles GET /api/agent/stream?prompt=&sessionId=&permissionMode=
func (h *AgentHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prompt := r.URL.Query().Get("prompt")
	if err := middleware.ValidatePrompt(prompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	permissionMode := r.URL.Query().Get("permissionMode")

	sess, created := h.manager.GetOrCreate(sessionID, "", permissionMode)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	h.logger.Info("agent stream opened",
		"session_id", sess.ID,
		"created", created,
		"permission_mode", sess.Mode(),
	)

	emit := func(payload map[string]any) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return sendSSEEvent(w, flusher, payload)
	}

	if err := h.runner.Run(ctx, sess, prompt, emit); err != nil {
		h.logger.Warn("agent run ended with error", "error", err, "session_id", sess.ID)
	}
}

// PermissionResponse handles POST /api/agent/permission-response
func (h *AgentHandler) PermissionResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID string `json:"requestId"`
		Behavior  string `json:"behavior"`
		Message   string `json:"message,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "requestId cannot be empty")
		return
	}

	if err := h.manager.ResolvePermission(req.RequestID, req.Behavior, req.Message); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

// QuestionResponse handles POST /api/agent/question-response
func (h *AgentHandler) QuestionResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID string            `json:"requestId"`
		Answers   map[string]string `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "requestId cannot be empty")
		return
	}

	if err := h.manager.ResolveQuestion(req.RequestID, req.Answers); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

// Mode handles POST /api/agent/mode
func (h *AgentHandler) Mode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Mode      string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.SetMode(req.SessionID, req.Mode); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

// sendSSEEvent writes one event in the two-line event:/data: framing. The
// event name mirrors the payload's type discriminator.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, payload map[string]any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	name, _ := payload["type"].(string)
	if name == "" {
		name = "message"
	}

	fmt.Fprintf(w, "event: %s\n", name)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}

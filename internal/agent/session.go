// Package agent runs server-side agent sessions and streams their events.
package agent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ideate-ai/platform/pkg/metrics"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Permission modes. The default mode gates tool use behind an approval
// round trip; bypass skips it.
const (
	ModeDefault = "default"
	ModeBypass  = "bypassPermissions"
	ModePlan    = "plan"
)

// Decision resolves a pending permission or question request.
type Decision struct {
	Behavior string
	Message  string
	Answers  map[string]string
}

// finalResult is the cached terminal state of a completed session, replayed
// when a client reopens the stream.
type finalResult struct {
	MessageID string
	Text      string
	Thinking  string
	TokensIn  int
	TokensOut int
	Duration  int64
	IsError   bool
}

// Session is one agent conversation. A session streams at most one message
// at a time; reopening a completed session replays its final message so a
// reconnecting client converges without duplicates.
type Session struct {
	ID    string
	Model string

	mu      sync.Mutex
	mode    string
	status  Status
	final   *finalResult
	outband chan map[string]any
}

// NewSession creates a session in the given permission mode.
func newSession(id, model, mode string) *Session {
	if mode == "" {
		mode = ModeDefault
	}
	return &Session{
		ID:      id,
		Model:   model,
		mode:    mode,
		status:  StatusPending,
		outband: make(chan map[string]any, 16),
	}
}

// Mode returns the current permission mode.
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Status returns the session lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Session) setFinal(f *finalResult) {
	s.mu.Lock()
	s.final = f
	s.mu.Unlock()
}

func (s *Session) finalState() *finalResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

// push queues an out-of-band event for injection into the active stream.
// Dropped when the stream is not draining; these events are best effort.
func (s *Session) push(payload map[string]any) {
	select {
	case s.outband <- payload:
	default:
	}
}

// takeOutband drains one queued out-of-band event, non-blocking.
func (s *Session) takeOutband() (map[string]any, bool) {
	select {
	case payload := <-s.outband:
		return payload, true
	default:
		return nil, false
	}
}

type pendingKind string

const (
	pendingPermission pendingKind = "permission"
	pendingQuestion   pendingKind = "question"
)

type pendingRequest struct {
	kind    pendingKind
	session *Session
	decide  chan Decision
}

// Manager owns sessions and the registry of unresolved permission/question
// requests.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[string]*pendingRequest

	// NewID issues session and request ids.
	NewID func() string
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		pending:  make(map[string]*pendingRequest),
		NewID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
}

// GetOrCreate returns the session with the given id, creating it when the id
// is empty or unknown. Reports whether it was created.
func (m *Manager) GetOrCreate(sessionID, model, mode string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if sess, ok := m.sessions[sessionID]; ok {
			return sess, false
		}
	}

	if sessionID == "" {
		sessionID = m.NewID()
	}
	sess := newSession(sessionID, model, mode)
	m.sessions[sessionID] = sess
	return sess, true
}

// Get returns an existing session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return sess, nil
}

// SetMode switches a session's permission mode and injects a mode_changed
// confirmation into its active stream.
func (m *Manager) SetMode(sessionID, mode string) error {
	sess, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	switch mode {
	case ModeDefault, ModeBypass, ModePlan:
	default:
		return fmt.Errorf("unknown permission mode %q", mode)
	}

	sess.mu.Lock()
	sess.mode = mode
	sess.mu.Unlock()

	sess.push(map[string]any{"type": "mode_changed", "mode": mode})
	return nil
}

// PendingRequestIDs returns the ids of all unresolved permission and question
// requests.
func (m *Manager) PendingRequestIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	return ids
}

// createPending registers an unresolved request and returns its id plus the
// channel its decision arrives on.
func (m *Manager) createPending(sess *Session, kind pendingKind) (string, chan Decision) {
	requestID := m.NewID()
	decide := make(chan Decision, 1)

	m.mu.Lock()
	m.pending[requestID] = &pendingRequest{kind: kind, session: sess, decide: decide}
	m.mu.Unlock()

	metrics.PendingRequestsActive.WithLabelValues(string(kind)).Inc()
	return requestID, decide
}

func (m *Manager) removePending(requestID string) {
	m.mu.Lock()
	req, ok := m.pending[requestID]
	if ok {
		delete(m.pending, requestID)
	}
	m.mu.Unlock()

	if ok {
		metrics.PendingRequestsActive.WithLabelValues(string(req.kind)).Dec()
	}
}

// Resolve delivers a decision to the pending request with the given id.
func (m *Manager) Resolve(requestID string, kind pendingKind, decision Decision) error {
	m.mu.Lock()
	req, ok := m.pending[requestID]
	if ok && req.kind == kind {
		delete(m.pending, requestID)
	}
	m.mu.Unlock()

	if !ok || req.kind != kind {
		return fmt.Errorf("request %s not found", requestID)
	}

	metrics.PendingRequestsActive.WithLabelValues(string(req.kind)).Dec()
	req.decide <- decision
	return nil
}

// ResolvePermission answers a pending permission request.
func (m *Manager) ResolvePermission(requestID, behavior, message string) error {
	if behavior != "allow" && behavior != "deny" {
		return fmt.Errorf("behavior must be allow or deny")
	}
	return m.Resolve(requestID, pendingPermission, Decision{Behavior: behavior, Message: message})
}

// ResolveQuestion answers a pending question request.
func (m *Manager) ResolveQuestion(requestID string, answers map[string]string) error {
	return m.Resolve(requestID, pendingQuestion, Decision{Answers: answers})
}

// AskQuestion injects a question request into a session's active stream and
// returns the channel its answers arrive on.
func (m *Manager) AskQuestion(sess *Session, questions []map[string]any) (string, chan Decision) {
	requestID, decide := m.createPending(sess, pendingQuestion)
	sess.push(map[string]any{
		"type":      "question_request",
		"requestId": requestID,
		"questions": questions,
	})
	return requestID, decide
}

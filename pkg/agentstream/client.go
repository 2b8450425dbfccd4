package agentstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ideate-ai/platform/pkg/logger"
)

// Behavior is the decision for a permission request.
type Behavior string

const (
	BehaviorAllow Behavior = "allow"
	BehaviorDeny  Behavior = "deny"
)

// Client talks to the agent API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Logger:     logger.Global(),
	}
}

// StreamOptions configures an agent stream.
type StreamOptions struct {
	Prompt         string
	SessionID      string
	PermissionMode string

	// RetryInterval is the wait before reconnecting after a transport drop.
	// Reconnects reissue the same query, which is why the stream force-closes
	// itself on the terminal result event.
	RetryInterval time.Duration

	// OnState, when set, is invoked synchronously after each reduced event.
	OnState func(State)
}

// Stream is one open agent stream. All state mutations happen on the single
// consumer goroutine; snapshots are safe to read from anywhere.
type Stream struct {
	client *Client
	opts   StreamOptions
	cancel context.CancelFunc

	mu    sync.Mutex
	state State

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// OpenStream opens GET /api/agent/stream and starts consuming events.
func (c *Client) OpenStream(ctx context.Context, opts StreamOptions) (*Stream, error) {
	if opts.Prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		client: c,
		opts:   opts,
		cancel: cancel,
		state:  NewState(),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go s.run(ctx)
	return s, nil
}

// State returns a snapshot of the current reconciler state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the stream has fully stopped, either after the terminal
// result event or after Close.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close cancels the stream. It is the sole cancellation mechanism and must be
// safe to call repeatedly; the run loop also calls it on the terminal result
// event to suppress the reconnect behavior.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	defer s.Close()

	for {
		err := s.consume(ctx)

		if s.State().Done || s.isClosed() || ctx.Err() != nil {
			return
		}

		// Transport dropped mid-stream. Mirror EventSource's native retry:
		// wait and reissue the same query. Duplicate complete messages from
		// the replay are dropped by the reducer's seen-id set.
		if err != nil {
			s.client.Logger.Warn("agent stream dropped, reconnecting",
				"error", err, "session_id", s.opts.SessionID)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.RetryInterval):
		}
	}
}

// consume opens one SSE connection and reduces every event it delivers.
func (s *Stream) consume(ctx context.Context) error {
	q := url.Values{}
	q.Set("prompt", s.opts.Prompt)
	if s.opts.SessionID != "" {
		q.Set("sessionId", s.opts.SessionID)
	}
	if s.opts.PermissionMode != "" {
		q.Set("permissionMode", s.opts.PermissionMode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.client.BaseURL+"/api/agent/stream?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.client.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.client.Token)
	}

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream open failed: status %d", resp.StatusCode)
	}

	// Parse the two-line event:/data: framing. Events are separated by a
	// blank line; comment and id fields are ignored.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if data.Len() > 0 {
				s.dispatch(data.Bytes())
				data.Reset()
			}
			if s.State().Done {
				// Terminal result received: close the transport before the
				// reconnect loop can reissue the completed query.
				return nil
			}
			continue
		}

		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(payload, " "))
		}
	}

	return scanner.Err()
}

// dispatch parses and reduces a single event payload. Per-event parse errors
// are logged and skipped; they never terminate the stream.
func (s *Stream) dispatch(data []byte) {
	ev, err := ParseEvent(data)
	if err != nil {
		s.client.Logger.Warn("failed to parse stream event", "error", err)
		return
	}

	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	next := s.state
	s.mu.Unlock()

	if s.opts.OnState != nil {
		s.opts.OnState(next)
	}
}

func (s *Stream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// RespondPermission answers the pending permission request. The pending state
// is cleared only after the server accepts the response; a failed POST leaves
// it in place and surfaces the error.
func (s *Stream) RespondPermission(ctx context.Context, behavior Behavior, message string) error {
	pending := s.State().PendingPermission
	if pending == nil {
		return fmt.Errorf("no pending permission request")
	}

	err := s.client.postJSON(ctx, "/api/agent/permission-response", map[string]any{
		"requestId": pending.RequestID,
		"behavior":  behavior,
		"message":   message,
	})

	s.mu.Lock()
	if err != nil {
		s.state.ErrMsg = err.Error()
	} else {
		s.state.PendingPermission = nil
	}
	s.mu.Unlock()
	return err
}

// RespondQuestion answers the pending question request.
func (s *Stream) RespondQuestion(ctx context.Context, answers map[string]string) error {
	pending := s.State().PendingQuestion
	if pending == nil {
		return fmt.Errorf("no pending question request")
	}

	err := s.client.postJSON(ctx, "/api/agent/question-response", map[string]any{
		"requestId": pending.RequestID,
		"answers":   answers,
	})

	s.mu.Lock()
	if err != nil {
		s.state.ErrMsg = err.Error()
	} else {
		s.state.PendingQuestion = nil
	}
	s.mu.Unlock()
	return err
}

// SetMode requests a permission mode switch. Local mode state only changes
// when the server confirms via a mode_changed event.
func (c *Client) SetMode(ctx context.Context, sessionID, mode string) error {
	return c.postJSON(ctx, "/api/agent/mode", map[string]any{
		"sessionId": sessionID,
		"mode":      mode,
	})
}

// HealthStatus is the response of GET /api/health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", path, e.Error)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return nil
}

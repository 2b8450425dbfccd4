package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ideate-ai/platform/internal/llm"
	"github.com/ideate-ai/platform/internal/model"
	"github.com/ideate-ai/platform/pkg/logger"
	"github.com/ideate-ai/platform/pkg/metrics"
)

// EmitFunc delivers one wire event payload to the connected client. The
// payload carries its own "type" discriminator.
type EmitFunc func(payload map[string]any) error

// RunPublisher broadcasts step events for long-running operations.
type RunPublisher interface {
	PublishRun(ev *model.RunEvent) error
}

// Config tunes runner behavior.
type Config struct {
	DefaultModel    string
	MaxTokens       int
	RequireApproval bool
	ApprovalTimeout time.Duration
}

// Runner executes agent sessions against an LLM backend, streaming typed
// events to the caller's emit function.
type Runner struct {
	manager   *Manager
	llm       llm.Client
	publisher RunPublisher
	cfg       Config
	logger    *logger.Logger
}

// NewRunner creates a runner. The publisher may be nil.
func NewRunner(manager *Manager, client llm.Client, publisher RunPublisher, cfg Config, log *logger.Logger) *Runner {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = 2 * time.Minute
	}
	return &Runner{
		manager:   manager,
		llm:       client,
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
	}
}

// Run executes one prompt in the session, emitting system, delta, assistant,
// and result events in order. A completed session replays its final message
// instead of re-running; the client's seen-id dedup makes the replay
// idempotent.
func (r *Runner) Run(ctx context.Context, sess *Session, prompt string, emit EmitFunc) error {
	if err := emit(map[string]any{
		"type":           "system",
		"sessionId":      sess.ID,
		"model":          sess.Model,
		"permissionMode": sess.Mode(),
	}); err != nil {
		return err
	}

	if final := sess.finalState(); final != nil {
		return r.replay(final, sess, emit)
	}

	if r.cfg.RequireApproval && sess.Mode() == ModeDefault {
		allowed, err := r.awaitApproval(ctx, sess, prompt, emit)
		if err != nil {
			return err
		}
		if !allowed {
			emit(map[string]any{"type": "error", "message": "permission denied"})
			return r.finish(sess, emit, &finalResult{IsError: true})
		}
	}

	sess.setStatus(StatusRunning)
	r.publishStep(sess, model.RunStepStart, "generate", "")

	start := time.Now()
	messageID := r.manager.NewID()

	resp, err := r.llm.CompleteStream(ctx, &llm.CompletionRequest{
		Model:     r.modelFor(sess),
		Messages:  []llm.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens: r.cfg.MaxTokens,
		Stream:    true,
	}, func(delta llm.TokenDelta, index int) error {
		r.drainOutband(sess, emit)

		inner := map[string]any{"message_id": messageID}
		if delta.Thinking != "" {
			inner["delta"] = map[string]any{"thinking": delta.Thinking}
		} else {
			inner["delta"] = map[string]any{"text": delta.Text}
		}
		return emit(map[string]any{"type": "stream_event", "event": inner})
	})

	if err != nil {
		sess.setStatus(StatusFailed)
		r.publishStep(sess, model.RunStepError, "generate", err.Error())
		emit(map[string]any{"type": "error", "message": err.Error()})
		metrics.RecordAgentStream(r.modelFor(sess), "error", time.Since(start).Seconds(), 0, 0)
		return fmt.Errorf("agent stream failed: %w", err)
	}

	r.drainOutband(sess, emit)

	if err := emit(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"id":   messageID,
			"text": resp.Content,
		},
	}); err != nil {
		return err
	}

	final := &finalResult{
		MessageID: messageID,
		Text:      resp.Content,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		Duration:  time.Since(start).Milliseconds(),
	}
	sess.setFinal(final)

	r.publishStep(sess, model.RunStepComplete, "generate", "")
	metrics.RecordAgentStream(resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	return r.finish(sess, emit, final)
}

// replay re-emits the cached final message and result for a completed
// session. The message keeps its original id so reconnecting clients
// deduplicate it.
func (r *Runner) replay(final *finalResult, sess *Session, emit EmitFunc) error {
	if final.MessageID != "" {
		if err := emit(map[string]any{
			"type": "assistant",
			"message": map[string]any{
				"id":   final.MessageID,
				"text": final.Text,
			},
		}); err != nil {
			return err
		}
	}
	return r.emitResult(sess, emit, final)
}

// finish marks the session terminal and emits the result event, which the
// client uses to close its transport.
func (r *Runner) finish(sess *Session, emit EmitFunc, final *finalResult) error {
	if final.IsError {
		sess.setStatus(StatusFailed)
	} else {
		sess.setStatus(StatusCompleted)
	}
	sess.setFinal(final)
	return r.emitResult(sess, emit, final)
}

func (r *Runner) emitResult(sess *Session, emit EmitFunc, final *finalResult) error {
	return emit(map[string]any{
		"type":      "result",
		"sessionId": sess.ID,
		"usage": map[string]any{
			"inputTokens":  final.TokensIn,
			"outputTokens": final.TokensOut,
		},
		"durationMs": final.Duration,
		"isError":    final.IsError,
	})
}

// awaitApproval emits a permission request and blocks until the decision
// arrives or the timeout elapses. Timeout counts as denial.
func (r *Runner) awaitApproval(ctx context.Context, sess *Session, prompt string, emit EmitFunc) (bool, error) {
	requestID, decide := r.manager.createPending(sess, pendingPermission)

	if err := emit(map[string]any{
		"type":      "permission_request",
		"requestId": requestID,
		"toolName":  "run_agent",
		"input":     map[string]any{"prompt": prompt},
	}); err != nil {
		r.manager.removePending(requestID)
		return false, err
	}

	select {
	case <-ctx.Done():
		r.manager.removePending(requestID)
		return false, ctx.Err()
	case <-time.After(r.cfg.ApprovalTimeout):
		r.manager.removePending(requestID)
		r.logger.Warn("permission request timed out", "session_id", sess.ID, "request_id", requestID)
		return false, nil
	case decision := <-decide:
		return decision.Behavior == "allow", nil
	}
}

// drainOutband injects queued out-of-band events (mode changes, question
// requests) into the stream between deltas.
func (r *Runner) drainOutband(sess *Session, emit EmitFunc) {
	for {
		payload, ok := sess.takeOutband()
		if !ok {
			return
		}
		if err := emit(payload); err != nil {
			return
		}
	}
}

func (r *Runner) modelFor(sess *Session) string {
	if sess.Model != "" {
		return sess.Model
	}
	return r.cfg.DefaultModel
}

func (r *Runner) publishStep(sess *Session, step model.RunStepType, name, msg string) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.PublishRun(&model.RunEvent{
		Type:      step,
		SessionID: sess.ID,
		Step:      name,
		Message:   msg,
		At:        time.Now(),
	})
	if err != nil {
		r.logger.Warn("failed to publish run event", "error", err, "session_id", sess.ID)
	}
}

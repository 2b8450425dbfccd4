// Package agentstream consumes the agent SSE stream and reconciles its
// events into an ordered, de-duplicated list of display messages.
package agentstream

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind discriminates stream event payloads.
type Kind string

const (
	KindSystem            Kind = "system"
	KindAssistant         Kind = "assistant"
	KindStreamEvent       Kind = "stream_event"
	KindResult            Kind = "result"
	KindError             Kind = "error"
	KindPermissionRequest Kind = "permission_request"
	KindQuestionRequest   Kind = "question_request"
	KindModeChanged       Kind = "mode_changed"
)

// Event is the tagged union over everything the stream can deliver. Exactly
// one payload field matching Kind is non-nil.
type Event struct {
	Kind       Kind
	System     *SystemEvent
	Assistant  *AssistantEvent
	Delta      *Delta
	Result     *ResultEvent
	Err        *ErrorEvent
	Permission *PermissionRequest
	Question   *QuestionRequest
	Mode       *ModeChanged
}

// SystemEvent initializes a session.
type SystemEvent struct {
	SessionID      string   `json:"sessionId"`
	Model          string   `json:"model,omitempty"`
	PermissionMode string   `json:"permissionMode,omitempty"`
	Tools          []string `json:"tools,omitempty"`
}

// ToolCall is a tool invocation attached to an assistant message.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// AssistantMessage is a complete assistant message as sent on the wire.
type AssistantMessage struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// AssistantEvent carries either a complete message or a partial delta.
type AssistantEvent struct {
	Subtype string           `json:"subtype,omitempty"` // "partial" for deltas
	Message AssistantMessage `json:"message"`
	Delta   *wireDelta       `json:"delta,omitempty"`
}

// Delta is an incremental text/thinking fragment, normalized from both
// assistant/partial and stream_event payloads.
type Delta struct {
	MessageID string
	Text      string
	Thinking  string
}

// Usage carries token accounting from the terminal result event.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ResultEvent terminates a stream.
type ResultEvent struct {
	SessionID  string `json:"sessionId,omitempty"`
	Usage      Usage  `json:"usage"`
	DurationMS int64  `json:"durationMs,omitempty"`
	IsError    bool   `json:"isError,omitempty"`
}

// ErrorEvent surfaces a server-side failure.
type ErrorEvent struct {
	Message string `json:"message"`
}

// PermissionRequest asks the user to approve or deny a tool use.
type PermissionRequest struct {
	RequestID string         `json:"requestId"`
	ToolName  string         `json:"toolName"`
	Input     map[string]any `json:"input,omitempty"`
}

// Question is a single prompt within a question request.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// QuestionRequest asks the user to answer one or more questions.
type QuestionRequest struct {
	RequestID string     `json:"requestId"`
	Questions []Question `json:"questions"`
}

// ModeChanged confirms a server-side permission mode switch.
type ModeChanged struct {
	Mode string `json:"mode"`
}

type wireDelta struct {
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

// ParseEvent decodes a single SSE data payload into an Event. Unknown types
// are not an error; they parse to a zero-kind event the reducer ignores, so
// new server event types never break old clients.
func ParseEvent(data []byte) (Event, error) {
	kind := Kind(gjson.GetBytes(data, "type").String())

	switch kind {
	case KindSystem:
		var ev SystemEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("system event: %w", err)
		}
		return Event{Kind: KindSystem, System: &ev}, nil

	case KindAssistant:
		var ev AssistantEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("assistant event: %w", err)
		}
		if ev.Subtype == "partial" {
			d := &Delta{MessageID: ev.Message.ID}
			if ev.Delta != nil {
				d.Text = ev.Delta.Text
				d.Thinking = ev.Delta.Thinking
			}
			return Event{Kind: KindAssistant, Assistant: &ev, Delta: d}, nil
		}
		return Event{Kind: KindAssistant, Assistant: &ev}, nil

	case KindStreamEvent:
		return Event{Kind: KindStreamEvent, Delta: normalizeStreamEvent(data)}, nil

	case KindResult:
		var ev ResultEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("result event: %w", err)
		}
		return Event{Kind: KindResult, Result: &ev}, nil

	case KindError:
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("error event: %w", err)
		}
		return Event{Kind: KindError, Err: &ev}, nil

	case KindPermissionRequest:
		var ev PermissionRequest
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("permission request: %w", err)
		}
		return Event{Kind: KindPermissionRequest, Permission: &ev}, nil

	case KindQuestionRequest:
		var ev QuestionRequest
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("question request: %w", err)
		}
		return Event{Kind: KindQuestionRequest, Question: &ev}, nil

	case KindModeChanged:
		var ev ModeChanged
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("mode changed: %w", err)
		}
		return Event{Kind: KindModeChanged, Mode: &ev}, nil
	}

	return Event{}, nil
}

// normalizeStreamEvent extracts a delta from the loosely-typed low-level
// stream_event shape. The inner `event.delta` may be a bare string or an
// object with text/thinking fields; the message id, when present, lives at
// `event.message_id` or `event.message.id`.
func normalizeStreamEvent(data []byte) *Delta {
	d := &Delta{}

	if id := gjson.GetBytes(data, "event.message_id"); id.Exists() {
		d.MessageID = id.String()
	} else if id := gjson.GetBytes(data, "event.message.id"); id.Exists() {
		d.MessageID = id.String()
	}

	delta := gjson.GetBytes(data, "event.delta")
	switch {
	case delta.Type == gjson.String:
		d.Text = delta.String()
	case delta.IsObject():
		d.Text = delta.Get("text").String()
		d.Thinking = delta.Get("thinking").String()
	}

	return d
}

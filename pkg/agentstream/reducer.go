package agentstream

// pendingMessageID keys the streaming accumulator while the low-level deltas
// carry no message id of their own. The finalize step swaps it for the real
// id when the complete message arrives.
const pendingMessageID = "msg_pending"

// Message is a display message in the chat panel list, uniquely keyed by ID
// for replace-in-place semantics.
type Message struct {
	ID          string
	Role        string
	Text        string
	Thinking    string
	IsStreaming bool
	ToolCalls   []ToolCall
}

// StreamingState tracks the single in-flight message being accumulated.
// At most one message streams at a time; a result or complete assistant
// message clears it.
type StreamingState struct {
	CurrentMessageID string
	CurrentText      string
	CurrentThinking  string
}

// Active reports whether a message is currently being accumulated.
func (ss StreamingState) Active() bool {
	return ss.CurrentMessageID != ""
}

// State is the full reconciler state. It is threaded by value through Reduce;
// the seen-id set is the one piece of internal bookkeeping shared across
// reductions, owned by the single consumer loop driving the reducer.
type State struct {
	SessionID      string
	Model          string
	PermissionMode string

	Messages  []Message
	Streaming StreamingState

	Connected   bool
	IsStreaming bool
	IsThinking  bool
	Done        bool

	Usage  *Usage
	ErrMsg string

	PendingPermission *PermissionRequest
	PendingQuestion   *QuestionRequest

	seen map[string]struct{}
}

// NewState returns an empty reconciler state.
func NewState() State {
	return State{seen: make(map[string]struct{})}
}

// Seen reports whether a complete message with the given id was already
// processed.
func (s State) Seen(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// Reduce applies one stream event to the state and returns the next state.
// Event order is arrival order; the stream delivers no duplicates except the
// complete-assistant replay case, which the seen-id set makes a no-op.
func Reduce(s State, ev Event) State {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}

	switch ev.Kind {
	case KindSystem:
		s.Connected = true
		s.SessionID = ev.System.SessionID
		if ev.System.Model != "" {
			s.Model = ev.System.Model
		}
		if ev.System.PermissionMode != "" {
			s.PermissionMode = ev.System.PermissionMode
		}
		return s

	case KindStreamEvent:
		return applyDelta(s, ev.Delta)

	case KindAssistant:
		if ev.Delta != nil {
			return applyDelta(s, ev.Delta)
		}
		return finalize(s, ev.Assistant.Message)

	case KindResult:
		s.Usage = &ev.Result.Usage
		s.Streaming = StreamingState{}
		s.IsStreaming = false
		s.IsThinking = false
		s.Connected = false
		s.Done = true
		s.Messages = clearStreamingFlags(s.Messages)
		if ev.Result.IsError && s.ErrMsg == "" {
			s.ErrMsg = "agent run failed"
		}
		return s

	case KindError:
		s.ErrMsg = ev.Err.Message
		s.IsStreaming = false
		s.IsThinking = false
		return s

	case KindPermissionRequest:
		s.PendingPermission = ev.Permission
		return s

	case KindQuestionRequest:
		s.PendingQuestion = ev.Question
		return s

	case KindModeChanged:
		s.PermissionMode = ev.Mode.Mode
		return s
	}

	// Unknown or zero-kind events are ignored.
	return s
}

// applyDelta merges an incremental fragment into the streaming accumulator
// and re-derives the in-progress display message.
func applyDelta(s State, d *Delta) State {
	if d == nil || (d.Text == "" && d.Thinking == "") {
		return s
	}

	id := d.MessageID
	if id == "" {
		id = s.Streaming.CurrentMessageID
	}
	if id == "" {
		id = pendingMessageID
	}

	// A new message id resets the accumulator.
	if id != s.Streaming.CurrentMessageID {
		s.Streaming = StreamingState{CurrentMessageID: id}
	}

	s.Streaming.CurrentText += d.Text
	s.Streaming.CurrentThinking += d.Thinking
	s.IsThinking = d.Thinking != "" && d.Text == ""
	s.IsStreaming = true
	s.Connected = true

	s.Messages = upsertByID(s.Messages, Message{
		ID:          id,
		Role:        "assistant",
		Text:        s.Streaming.CurrentText,
		Thinking:    s.Streaming.CurrentThinking,
		IsStreaming: true,
	})

	return s
}

// finalize replaces the in-progress entry with the complete message. A
// message id already processed is silently dropped so a server replay after
// reconnect cannot duplicate entries.
func finalize(s State, m AssistantMessage) State {
	if _, dup := s.seen[m.ID]; dup {
		return s
	}
	s.seen[m.ID] = struct{}{}

	msg := Message{
		ID:        m.ID,
		Role:      "assistant",
		Text:      m.Text,
		Thinking:  m.Thinking,
		ToolCalls: m.ToolCalls,
	}

	messages := cloneMessages(s.Messages)
	switch {
	case replaceByID(messages, m.ID, msg):
	case s.Streaming.Active() && replaceByID(messages, s.Streaming.CurrentMessageID, msg):
	case replaceFirstStreaming(messages, msg):
	default:
		messages = append(messages, msg)
	}

	s.Messages = messages
	s.Streaming = StreamingState{}
	s.IsStreaming = false
	s.IsThinking = false
	return s
}

func upsertByID(messages []Message, msg Message) []Message {
	out := cloneMessages(messages)
	if replaceByID(out, msg.ID, msg) {
		return out
	}
	return append(out, msg)
}

func replaceByID(messages []Message, id string, msg Message) bool {
	for i := range messages {
		if messages[i].ID == id {
			messages[i] = msg
			return true
		}
	}
	return false
}

func replaceFirstStreaming(messages []Message, msg Message) bool {
	for i := range messages {
		if messages[i].IsStreaming {
			messages[i] = msg
			return true
		}
	}
	return false
}

func clearStreamingFlags(messages []Message) []Message {
	out := cloneMessages(messages)
	for i := range out {
		out[i].IsStreaming = false
	}
	return out
}

func cloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

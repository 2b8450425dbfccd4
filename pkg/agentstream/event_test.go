package agentstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventStreamEventShapes(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Delta
	}{
		{
			name: "bare string delta",
			data: `{"type":"stream_event","event":{"delta":"He"}}`,
			want: Delta{Text: "He"},
		},
		{
			name: "object delta with text",
			data: `{"type":"stream_event","event":{"message_id":"msg-1","delta":{"text":"llo"}}}`,
			want: Delta{MessageID: "msg-1", Text: "llo"},
		},
		{
			name: "object delta with thinking",
			data: `{"type":"stream_event","event":{"message_id":"msg-1","delta":{"thinking":"hmm"}}}`,
			want: Delta{MessageID: "msg-1", Thinking: "hmm"},
		},
		{
			name: "message id nested under message",
			data: `{"type":"stream_event","event":{"message":{"id":"msg-2"},"delta":{"text":"x"}}}`,
			want: Delta{MessageID: "msg-2", Text: "x"},
		},
		{
			name: "missing delta",
			data: `{"type":"stream_event","event":{"message_id":"msg-1"}}`,
			want: Delta{MessageID: "msg-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, KindStreamEvent, ev.Kind)
			require.NotNil(t, ev.Delta)
			assert.Equal(t, tt.want, *ev.Delta)
		})
	}
}

func TestParseEventAssistant(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"assistant","message":{"id":"msg-1","text":"Hello"}}`))
	require.NoError(t, err)

	assert.Equal(t, KindAssistant, ev.Kind)
	require.NotNil(t, ev.Assistant)
	assert.Equal(t, "msg-1", ev.Assistant.Message.ID)
	assert.Equal(t, "Hello", ev.Assistant.Message.Text)
	assert.Nil(t, ev.Delta)
}

func TestParseEventAssistantPartial(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"assistant","subtype":"partial","message":{"id":"msg-1"},"delta":{"text":"He"}}`))
	require.NoError(t, err)

	assert.Equal(t, KindAssistant, ev.Kind)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, "msg-1", ev.Delta.MessageID)
	assert.Equal(t, "He", ev.Delta.Text)
}

func TestParseEventResult(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"result","sessionId":"sess-1","usage":{"inputTokens":5,"outputTokens":9},"durationMs":1200,"isError":false}`))
	require.NoError(t, err)

	assert.Equal(t, KindResult, ev.Kind)
	require.NotNil(t, ev.Result)
	assert.Equal(t, 5, ev.Result.Usage.InputTokens)
	assert.Equal(t, 9, ev.Result.Usage.OutputTokens)
	assert.Equal(t, int64(1200), ev.Result.DurationMS)
}

func TestParseEventPermissionRequest(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"permission_request","requestId":"req-1","toolName":"run_agent","input":{"prompt":"do it"}}`))
	require.NoError(t, err)

	assert.Equal(t, KindPermissionRequest, ev.Kind)
	require.NotNil(t, ev.Permission)
	assert.Equal(t, "req-1", ev.Permission.RequestID)
	assert.Equal(t, "run_agent", ev.Permission.ToolName)
}

func TestParseEventQuestionRequest(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"question_request","requestId":"req-2","questions":[{"id":"q1","prompt":"pick","options":["a","b"]}]}`))
	require.NoError(t, err)

	assert.Equal(t, KindQuestionRequest, ev.Kind)
	require.NotNil(t, ev.Question)
	require.Len(t, ev.Question.Questions, 1)
	assert.Equal(t, []string{"a", "b"}, ev.Question.Questions[0].Options)
}

func TestParseEventUnknownTypeIgnored(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"something_new","payload":123}`))
	require.NoError(t, err)
	assert.Equal(t, Kind(""), ev.Kind)
}

func TestParseEventMalformed(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"result","usage":"not an object"}`))
	assert.Error(t, err)
}

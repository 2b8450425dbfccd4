package bus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/ideate-ai/platform/internal/model"
	"github.com/ideate-ai/platform/pkg/metrics"
)

const (
	// SubjectPrefix is the prefix for all broadcast subjects.
	SubjectPrefix = "ideate"

	// globalWorkspace is the subject token for private/global resources.
	globalWorkspace = "_global"
)

// Broadcaster publishes resource and run events for multi-client sync.
// Delivery is best effort: core NATS pub/sub, no persistence, last write
// wins on conflicting concurrent edits.
type Broadcaster struct {
	client *Client
}

// NewBroadcaster creates a broadcaster over the given client.
func NewBroadcaster(client *Client) *Broadcaster {
	return &Broadcaster{client: client}
}

// WorkspaceSubject returns the subject carrying resource events for a
// workspace. An empty id maps to the private/global channel.
func WorkspaceSubject(workspaceID string) string {
	if workspaceID == "" {
		workspaceID = globalWorkspace
	}
	return fmt.Sprintf("%s.workspace.%s.resource", SubjectPrefix, workspaceID)
}

// RunSubject returns the subject carrying step events for an agent session.
func RunSubject(sessionID string) string {
	return fmt.Sprintf("%s.run.%s.step", SubjectPrefix, sessionID)
}

// PublishResource broadcasts a resource create/update/delete event.
func (b *Broadcaster) PublishResource(ev *model.ResourceEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal resource event: %w", err)
	}

	if err := b.client.Conn().Publish(WorkspaceSubject(ev.WorkspaceID), data); err != nil {
		return fmt.Errorf("failed to publish resource event: %w", err)
	}

	metrics.BroadcastEventsTotal.WithLabelValues("workspace", string(ev.Type)).Inc()
	return nil
}

// PublishRun broadcasts a step event for a long-running operation.
func (b *Broadcaster) PublishRun(ev *model.RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	if err := b.client.Conn().Publish(RunSubject(ev.SessionID), data); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}

	metrics.BroadcastEventsTotal.WithLabelValues("run", string(ev.Type)).Inc()
	return nil
}

// SubscribeWorkspace delivers raw resource event payloads for a workspace.
func (b *Broadcaster) SubscribeWorkspace(workspaceID string, handler func([]byte)) (*nats.Subscription, error) {
	return b.client.Conn().Subscribe(WorkspaceSubject(workspaceID), func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeRun delivers raw step event payloads for an agent session.
func (b *Broadcaster) SubscribeRun(sessionID string, handler func([]byte)) (*nats.Subscription, error) {
	return b.client.Conn().Subscribe(RunSubject(sessionID), func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

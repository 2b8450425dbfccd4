package model

import (
	"time"
)

// ResourceAction is the kind of change carried by a workspace broadcast.
type ResourceAction string

const (
	ResourceCreated ResourceAction = "created"
	ResourceUpdated ResourceAction = "updated"
	ResourceDeleted ResourceAction = "deleted"
)

// ResourceEvent is broadcast on the workspace channel so other clients can
// sync after a create/update/delete. Best effort, last write wins.
type ResourceEvent struct {
	Type        ResourceAction `json:"type"`
	Resource    string         `json:"resource"` // "thing" or "document"
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspaceId,omitempty"`
	At          time.Time      `json:"at"`
}

// RunStepType is the kind of progress update for a long-running operation.
type RunStepType string

const (
	RunStepStart    RunStepType = "step_start"
	RunStepUpdate   RunStepType = "step_update"
	RunStepComplete RunStepType = "step_complete"
	RunStepError    RunStepType = "step_error"
	RunComplete     RunStepType = "complete"
	RunError        RunStepType = "error"
)

// RunEvent is broadcast on the run channel for long-running import/agent
// operations.
type RunEvent struct {
	Type      RunStepType `json:"type"`
	SessionID string      `json:"sessionId"`
	Step      string      `json:"step,omitempty"`
	Message   string      `json:"message,omitempty"`
	At        time.Time   `json:"at"`
}

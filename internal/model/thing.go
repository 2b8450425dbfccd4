// Package model defines data structures for the ideate platform.
package model

import (
	"time"
)

// Thing type is an open string; these are the suggested values the UI ships
// with. Custom types are allowed.
const (
	ThingTypeProject  = "project"
	ThingTypeCategory = "category"
	ThingTypeFile     = "file"
	ThingTypeNote     = "note"
)

// Thing is a node in the knowledge graph. A Thing may have zero, one, or
// multiple parents, so the raw storage forms a DAG (possibly cyclic when
// malformed) rather than a tree.
type Thing struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Tags        []string `json:"tags,omitempty"`
	ParentIDs   []string `json:"parentIds"`
	OwnerID     string   `json:"ownerId"`
	WorkspaceID string   `json:"workspaceId,omitempty"` // empty means private/global

	// Order is a fractional sort key among siblings. New siblings take the
	// midpoint of their neighbors' values so inserts never renumber the rest.
	Order float64 `json:"order"`

	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt,omitempty"`

	Attachments []ThingAttachment `json:"attachments,omitempty"`
	Links       []ThingLink       `json:"links,omitempty"`
	Properties  map[string]any    `json:"properties,omitempty"`

	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// HasParent reports whether id appears in the Thing's parent list.
func (t *Thing) HasParent(id string) bool {
	for _, p := range t.ParentIDs {
		if p == id {
			return true
		}
	}
	return false
}

// RemoveParent strips id from the Thing's parent list, returning true if it
// was present.
func (t *Thing) RemoveParent(id string) bool {
	for i, p := range t.ParentIDs {
		if p == id {
			t.ParentIDs = append(t.ParentIDs[:i], t.ParentIDs[i+1:]...)
			return true
		}
	}
	return false
}

// ThingLink is an outbound reference owned by a Thing, deleted with it.
type ThingLink struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ThingAttachment is a file attachment owned by a Thing, deleted with it.
type ThingAttachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ThingDocument is the markdown content file paired with a Thing's metadata.
type ThingDocument struct {
	ThingID   string    `json:"thingId"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateThingRequest is the request to create a new Thing.
type CreateThingRequest struct {
	Name           string         `json:"name"`
	Type           string         `json:"type,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	ParentIDs      []string       `json:"parentIds,omitempty"`
	WorkspaceID    string         `json:"workspaceId,omitempty"`
	AfterSiblingID string         `json:"afterSiblingId,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
	Icon           string         `json:"icon,omitempty"`
	Color          string         `json:"color,omitempty"`
}

// UpdateThingRequest is a partial update. Nil fields are left untouched.
type UpdateThingRequest struct {
	Name       *string         `json:"name,omitempty"`
	Type       *string         `json:"type,omitempty"`
	Tags       *[]string       `json:"tags,omitempty"`
	ParentIDs  *[]string       `json:"parentIds,omitempty"`
	Order      *float64        `json:"order,omitempty"`
	Properties *map[string]any `json:"properties,omitempty"`
	Icon       *string         `json:"icon,omitempty"`
	Color      *string         `json:"color,omitempty"`
}

// ListThingsResponse is the response for listing Things.
type ListThingsResponse struct {
	Things []Thing `json:"things"`
	Total  int     `json:"total"`
}

// UpdateDocumentRequest replaces a Thing's markdown content.
type UpdateDocumentRequest struct {
	Body string `json:"body"`
}

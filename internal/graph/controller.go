package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ideate-ai/platform/internal/model"
)

// ThingAPI is the remote CRUD surface the controller reconciles against.
type ThingAPI interface {
	CreateThing(ctx context.Context, req *model.CreateThingRequest) (*model.Thing, error)
	UpdateThing(ctx context.Context, id string, req *model.UpdateThingRequest) (*model.Thing, error)
	DeleteThing(ctx context.Context, id string) error
}

// IDGenerator issues client-side temporary ids for optimistic inserts.
type IDGenerator func() string

// Controller keeps a client-visible materialized tree over the remote Thing
// store. Mutations apply locally first and reconcile against the server
// response, reverting to the last known-good state on failure.
//
// Not safe for concurrent use beyond its own locking: one controller owns one
// view, mirroring the single-owner rule for UI state.
type Controller struct {
	api   ThingAPI
	newID IDGenerator

	mu       sync.Mutex
	things   []model.Thing
	tree     []*TreeNode
	selected string
	lastErr  string
}

// NewController creates a controller over the given API. A nil ids generator
// falls back to uuid-based temp ids.
func NewController(api ThingAPI, ids IDGenerator) *Controller {
	if ids == nil {
		ids = func() string {
			return "temp-" + uuid.NewString()
		}
	}
	return &Controller{api: api, newID: ids}
}

// SetThings replaces the local Thing set (e.g. after a fetch) and rebuilds
// the tree.
func (c *Controller) SetThings(things []model.Thing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.things = make([]model.Thing, len(things))
	copy(c.things, things)
	c.tree = BuildTree(c.things)
}

// Tree returns the current materialized tree.
func (c *Controller) Tree() []*TreeNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree
}

// Selected returns the currently selected Thing id, or empty.
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Select sets the current selection.
func (c *Controller) Select(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = id
}

// LastError returns the most recent surfaced mutation error, or empty.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// CreateThing inserts a Thing optimistically under parentID (root when
// empty), after afterSiblingID when given, then sends the create request. On
// success the temp node is swapped for the server-confirmed node, carrying
// over its fractional position; on failure the temp node is removed.
func (c *Controller) CreateThing(ctx context.Context, name, parentID, afterSiblingID, workspaceID string) (*model.Thing, error) {
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}

	c.mu.Lock()

	siblings := Siblings(c.things, parentID, workspaceID)
	order, _ := CalculateOrder(siblings, afterSiblingID)

	temp := model.Thing{
		ID:          c.newID(),
		Name:        name,
		Type:        model.ThingTypeNote,
		WorkspaceID: workspaceID,
		Order:       order,
	}
	if parentID != "" {
		temp.ParentIDs = []string{parentID}
	}
	c.things = append(c.things, temp)

	// Splice the node into the existing tree in place rather than rebuilding,
	// so an expanded view keeps its identity during the round trip.
	node := &TreeNode{ID: temp.ID, Label: name, Type: temp.Type, Order: order}
	if parentID == "" {
		if afterSiblingID == "" || !InsertNodeAfterTarget(&c.tree, afterSiblingID, node) {
			c.tree = append(c.tree, node)
		}
	} else if !InsertNodeIntoParent(c.tree, parentID, node, afterSiblingID) {
		c.tree = append(c.tree, node)
	}

	c.selected = temp.ID
	c.mu.Unlock()

	req := &model.CreateThingRequest{
		Name:           name,
		ParentIDs:      temp.ParentIDs,
		WorkspaceID:    workspaceID,
		AfterSiblingID: afterSiblingID,
	}
	created, err := c.api.CreateThing(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.removeLocal(temp.ID)
		c.tree = BuildTree(c.things)
		if c.selected == temp.ID {
			c.selected = ""
		}
		c.lastErr = err.Error()
		return nil, err
	}

	// Keep the optimistic fractional position; the server may have computed
	// a different key against a stale sibling set.
	confirmed := *created
	confirmed.Order = temp.Order

	c.removeLocal(temp.ID)
	c.things = append(c.things, confirmed)
	c.tree = BuildTree(c.things)
	if c.selected == temp.ID {
		c.selected = confirmed.ID
	}
	c.lastErr = ""
	return &confirmed, nil
}

// RenameThing renames in place and reconciles. On failure the prior name is
// restored.
func (c *Controller) RenameThing(ctx context.Context, id, name string) error {
	c.mu.Lock()

	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("thing %s not found", id)
	}
	prior := c.things[idx].Name

	c.things[idx].Name = name
	if node := FindNode(c.tree, id); node != nil {
		node.Label = name
	}
	c.mu.Unlock()

	_, err := c.api.UpdateThing(ctx, id, &model.UpdateThingRequest{Name: &name})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if idx := c.indexOf(id); idx >= 0 {
			c.things[idx].Name = prior
		}
		if node := FindNode(c.tree, id); node != nil {
			node.Label = prior
		}
		c.lastErr = err.Error()
		return err
	}

	c.lastErr = ""
	return nil
}

// DeleteThing removes a Thing optimistically with local cascade, moving the
// selection to the next sibling, else the previous, else none. On failure the
// prior state is restored.
func (c *Controller) DeleteThing(ctx context.Context, id string) error {
	c.mu.Lock()

	snapshot := make([]model.Thing, len(c.things))
	copy(snapshot, c.things)
	for i := range snapshot {
		// The cascade strips parent ids in place; the snapshot needs its own
		// backing arrays to survive it.
		snapshot[i].ParentIDs = append([]string(nil), snapshot[i].ParentIDs...)
	}
	priorSelected := c.selected

	c.selected = nextSelection(c.tree, id)
	c.cascadeLocal(id)
	c.tree = BuildTree(c.things)
	c.mu.Unlock()

	err := c.api.DeleteThing(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.things = snapshot
		c.tree = BuildTree(c.things)
		c.selected = priorSelected
		c.lastErr = err.Error()
		return err
	}

	c.lastErr = ""
	return nil
}

// nextSelection picks the sibling that should be selected after deleting id:
// the next sibling, else the previous, else none.
func nextSelection(tree []*TreeNode, id string) string {
	siblings, idx := findSiblings(tree, id)
	if idx < 0 {
		return ""
	}
	if idx+1 < len(siblings) {
		return siblings[idx+1].ID
	}
	if idx > 0 {
		return siblings[idx-1].ID
	}
	return ""
}

func findSiblings(nodes []*TreeNode, id string) ([]*TreeNode, int) {
	for i, n := range nodes {
		if n.ID == id {
			return nodes, i
		}
		if sibs, idx := findSiblings(n.Children, id); idx >= 0 {
			return sibs, idx
		}
	}
	return nil, -1
}

// cascadeLocal mirrors the server's delete policy against the local set.
// Caller holds the lock.
func (c *Controller) cascadeLocal(id string) {
	c.removeLocal(id)

	for i := 0; i < len(c.things); i++ {
		if !c.things[i].HasParent(id) {
			continue
		}
		c.things[i].RemoveParent(id)
		if len(c.things[i].ParentIDs) == 0 {
			c.cascadeLocal(c.things[i].ID)
			i = -1 // restart: the slice shifted under us
		}
	}
}

func (c *Controller) removeLocal(id string) {
	for i := range c.things {
		if c.things[i].ID == id {
			c.things = append(c.things[:i], c.things[i+1:]...)
			return
		}
	}
}

func (c *Controller) indexOf(id string) int {
	for i := range c.things {
		if c.things[i].ID == id {
			return i
		}
	}
	return -1
}

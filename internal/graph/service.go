package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ideate-ai/platform/internal/model"
	"github.com/ideate-ai/platform/internal/store"
	"github.com/ideate-ai/platform/pkg/logger"
)

// Publisher broadcasts resource changes for multi-client sync. Broadcast is
// best effort; a publish failure never fails the mutation.
type Publisher interface {
	PublishResource(ev *model.ResourceEvent) error
}

// Service handles Thing CRUD over the store, keeping fractional sibling
// ordering and cascade-delete semantics.
type Service struct {
	store     store.Store
	publisher Publisher
	logger    *logger.Logger

	// NewID issues server-side Thing ids.
	NewID func() string
}

// NewService creates a Thing service.
func NewService(st store.Store, publisher Publisher, log *logger.Logger) *Service {
	return &Service{
		store:     st,
		publisher: publisher,
		logger:    log,
		NewID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
}

// Create creates a new Thing, placing it among its siblings per the
// fractional ordering rule.
func (s *Service) Create(ctx context.Context, ownerID string, req *model.CreateThingRequest) (*model.Thing, error) {
	things, err := s.store.ListThings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list things: %w", err)
	}

	parentID := ""
	if len(req.ParentIDs) > 0 {
		parentID = req.ParentIDs[0]
	}

	siblings := Siblings(things, parentID, req.WorkspaceID)
	order, needsRebalance := CalculateOrder(siblings, req.AfterSiblingID)
	if needsRebalance {
		if err := s.rebalance(ctx, siblings); err != nil {
			return nil, err
		}
		// Recompute against the renumbered keys.
		things, err = s.store.ListThings(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list things: %w", err)
		}
		siblings = Siblings(things, parentID, req.WorkspaceID)
		order, _ = CalculateOrder(siblings, req.AfterSiblingID)
	}

	now := time.Now()
	thingType := req.Type
	if thingType == "" {
		thingType = model.ThingTypeNote
	}

	t := &model.Thing{
		ID:          s.NewID(),
		Name:        req.Name,
		Type:        thingType,
		Tags:        req.Tags,
		ParentIDs:   req.ParentIDs,
		OwnerID:     ownerID,
		WorkspaceID: req.WorkspaceID,
		Order:       order,
		CreatedAt:   now,
		UpdatedAt:   now,
		Properties:  req.Properties,
		Icon:        req.Icon,
		Color:       req.Color,
	}

	if err := s.store.PutThing(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store thing: %w", err)
	}

	s.broadcast(model.ResourceCreated, "thing", t.ID, t.WorkspaceID)
	return t, nil
}

// Get retrieves a Thing and touches its access timestamp.
func (s *Service) Get(ctx context.Context, id string) (*model.Thing, error) {
	t, err := s.store.GetThing(ctx, id)
	if err != nil {
		return nil, err
	}

	t.LastAccessedAt = time.Now()
	if err := s.store.PutThing(ctx, t); err != nil {
		s.logger.Warn("failed to touch thing", "error", err, "thing_id", id)
	}
	return t, nil
}

// List returns all Things in a workspace (empty id means private/global).
func (s *Service) List(ctx context.Context, workspaceID string) ([]model.Thing, error) {
	things, err := s.store.ListThings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list things: %w", err)
	}

	filtered := things[:0:0]
	for _, t := range things {
		if t.WorkspaceID == workspaceID {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// Tree materializes the workspace's Things into the tree view.
func (s *Service) Tree(ctx context.Context, workspaceID string) ([]*TreeNode, error) {
	things, err := s.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return BuildTree(things), nil
}

// Update applies a partial update to a Thing.
func (s *Service) Update(ctx context.Context, id string, req *model.UpdateThingRequest) (*model.Thing, error) {
	t, err := s.store.GetThing(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Type != nil {
		t.Type = *req.Type
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
	}
	if req.ParentIDs != nil {
		t.ParentIDs = *req.ParentIDs
	}
	if req.Order != nil {
		t.Order = *req.Order
	}
	if req.Properties != nil {
		t.Properties = *req.Properties
	}
	if req.Icon != nil {
		t.Icon = *req.Icon
	}
	if req.Color != nil {
		t.Color = *req.Color
	}
	t.UpdatedAt = time.Now()

	if err := s.store.PutThing(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store thing: %w", err)
	}

	s.broadcast(model.ResourceUpdated, "thing", t.ID, t.WorkspaceID)
	return t, nil
}

// Delete removes a Thing and cascades. Descendants reachable only through the
// deleted Thing are deleted with it; a child holding another surviving parent
// keeps that parent and merely loses the deleted id from its parent list.
// Documents and attachments of every deleted Thing go with it. Returns the
// ids of all deleted Things.
func (s *Service) Delete(ctx context.Context, id string) ([]string, error) {
	target, err := s.store.GetThing(ctx, id)
	if err != nil {
		return nil, err
	}

	things, err := s.store.ListThings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list things: %w", err)
	}

	byID := make(map[string]*model.Thing, len(things))
	for i := range things {
		byID[things[i].ID] = &things[i]
	}

	var deleted []string
	visited := make(map[string]struct{})

	var cascade func(id string) error
	cascade = func(id string) error {
		if _, seen := visited[id]; seen {
			return nil
		}
		visited[id] = struct{}{}

		if err := s.store.DeleteThing(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to delete thing %s: %w", id, err)
		}
		if err := s.store.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", id, err)
		}
		deleted = append(deleted, id)

		for _, child := range byID {
			if !child.HasParent(id) {
				continue
			}
			child.RemoveParent(id)

			if len(child.ParentIDs) == 0 {
				if err := cascade(child.ID); err != nil {
					return err
				}
				continue
			}

			// Still reachable through another parent: persist the stripped
			// parent list instead of deleting.
			if _, gone := visited[child.ID]; gone {
				continue
			}
			child.UpdatedAt = time.Now()
			if err := s.store.PutThing(ctx, child); err != nil {
				return fmt.Errorf("failed to update thing %s: %w", child.ID, err)
			}
			s.broadcast(model.ResourceUpdated, "thing", child.ID, child.WorkspaceID)
		}
		return nil
	}

	if err := cascade(id); err != nil {
		return deleted, err
	}

	for _, delID := range deleted {
		s.broadcast(model.ResourceDeleted, "thing", delID, target.WorkspaceID)
	}

	s.logger.Info("thing deleted", "thing_id", id, "cascade_count", len(deleted))
	return deleted, nil
}

// GetDocument returns a Thing's markdown content.
func (s *Service) GetDocument(ctx context.Context, thingID string) (*model.ThingDocument, error) {
	if _, err := s.store.GetThing(ctx, thingID); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, thingID)
}

// PutDocument replaces a Thing's markdown content.
func (s *Service) PutDocument(ctx context.Context, thingID, body string) (*model.ThingDocument, error) {
	t, err := s.store.GetThing(ctx, thingID)
	if err != nil {
		return nil, err
	}

	doc := &model.ThingDocument{
		ThingID:   thingID,
		Body:      body,
		UpdatedAt: time.Now(),
	}
	if err := s.store.PutDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	s.broadcast(model.ResourceUpdated, "document", thingID, t.WorkspaceID)
	return doc, nil
}

// AddLink appends an outbound link to a Thing.
func (s *Service) AddLink(ctx context.Context, thingID, linkURL, title string) (*model.Thing, error) {
	t, err := s.store.GetThing(ctx, thingID)
	if err != nil {
		return nil, err
	}

	t.Links = append(t.Links, model.ThingLink{
		ID:        s.NewID(),
		URL:       linkURL,
		Title:     title,
		CreatedAt: time.Now(),
	})
	t.UpdatedAt = time.Now()

	if err := s.store.PutThing(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store thing: %w", err)
	}

	s.broadcast(model.ResourceUpdated, "thing", t.ID, t.WorkspaceID)
	return t, nil
}

// AddAttachment records a file attachment on a Thing.
func (s *Service) AddAttachment(ctx context.Context, thingID, name, contentType string, size int64) (*model.Thing, error) {
	t, err := s.store.GetThing(ctx, thingID)
	if err != nil {
		return nil, err
	}

	t.Attachments = append(t.Attachments, model.ThingAttachment{
		ID:          s.NewID(),
		Name:        name,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now(),
	})
	t.UpdatedAt = time.Now()

	if err := s.store.PutThing(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store thing: %w", err)
	}

	s.broadcast(model.ResourceUpdated, "thing", t.ID, t.WorkspaceID)
	return t, nil
}

// Siblings selects the Things sharing a parent (roots when parentID is empty)
// within one workspace.
func Siblings(things []model.Thing, parentID, workspaceID string) []model.Thing {
	var siblings []model.Thing
	for _, t := range things {
		if t.WorkspaceID != workspaceID {
			continue
		}
		if parentID == "" {
			if len(t.ParentIDs) == 0 {
				siblings = append(siblings, t)
			}
			continue
		}
		if t.HasParent(parentID) {
			siblings = append(siblings, t)
		}
	}
	return siblings
}

func (s *Service) rebalance(ctx context.Context, siblings []model.Thing) error {
	orders := RebalanceOrders(siblings)
	for i := range siblings {
		t, err := s.store.GetThing(ctx, siblings[i].ID)
		if err != nil {
			return fmt.Errorf("failed to rebalance: %w", err)
		}
		t.Order = orders[t.ID]
		t.UpdatedAt = time.Now()
		if err := s.store.PutThing(ctx, t); err != nil {
			return fmt.Errorf("failed to rebalance: %w", err)
		}
	}
	return nil
}

func (s *Service) broadcast(action model.ResourceAction, resource, id, workspaceID string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishResource(&model.ResourceEvent{
		Type:        action,
		Resource:    resource,
		ID:          id,
		WorkspaceID: workspaceID,
		At:          time.Now(),
	})
	if err != nil {
		s.logger.Warn("failed to broadcast resource event", "error", err, "resource_id", id)
	}
}

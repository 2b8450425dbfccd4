package store

import (
	"context"
	"sync"

	"github.com/ideate-ai/platform/internal/model"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	things map[string]model.Thing
	docs   map[string]model.ThingDocument
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		things: make(map[string]model.Thing),
		docs:   make(map[string]model.ThingDocument),
	}
}

// GetThing returns the Thing with the given id.
func (s *MemoryStore) GetThing(ctx context.Context, id string) (*model.Thing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.things[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// ListThings returns all stored Things.
func (s *MemoryStore) ListThings(ctx context.Context) ([]model.Thing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	things := make([]model.Thing, 0, len(s.things))
	for _, t := range s.things {
		things = append(things, t)
	}
	return things, nil
}

// PutThing stores or replaces a Thing.
func (s *MemoryStore) PutThing(ctx context.Context, t *model.Thing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.things[t.ID] = *t
	return nil
}

// DeleteThing removes a Thing.
func (s *MemoryStore) DeleteThing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.things[id]; !ok {
		return ErrNotFound
	}
	delete(s.things, id)
	return nil
}

// GetDocument returns the markdown document for a Thing.
func (s *MemoryStore) GetDocument(ctx context.Context, thingID string) (*model.ThingDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[thingID]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

// PutDocument stores or replaces a Thing's markdown document.
func (s *MemoryStore) PutDocument(ctx context.Context, doc *model.ThingDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ThingID] = *doc
	return nil
}

// DeleteDocument removes a Thing's markdown document. Missing documents are
// not an error: most Things never have one.
func (s *MemoryStore) DeleteDocument(ctx context.Context, thingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, thingID)
	return nil
}

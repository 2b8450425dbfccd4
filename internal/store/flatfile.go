package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ideate-ai/platform/internal/model"
)

// FlatFileStore persists each Thing as <uuid>.json with an optional <uuid>.md
// content file beside it, all in one flat directory.
type FlatFileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFlatFileStore opens (creating if needed) a flat-file store directory.
func NewFlatFileStore(dir string) (*FlatFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FlatFileStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *FlatFileStore) Dir() string {
	return s.dir
}

func (s *FlatFileStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FlatFileStore) docPath(id string) string {
	return filepath.Join(s.dir, id+".md")
}

// GetThing reads a Thing's metadata file.
func (s *FlatFileStore) GetThing(ctx context.Context, id string) (*model.Thing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readThing(id)
}

func (s *FlatFileStore) readThing(id string) (*model.Thing, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thing %s: %w", id, err)
	}

	var t model.Thing
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse thing %s: %w", id, err)
	}
	return &t, nil
}

// ListThings scans the directory for metadata files.
func (s *FlatFileStore) ListThings(ctx context.Context) ([]model.Thing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}

	var things []model.Thing
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, err := uuid.Parse(id); err != nil {
			continue
		}

		t, err := s.readThing(id)
		if err != nil {
			// A half-written or foreign file must not break the listing.
			continue
		}
		things = append(things, *t)
	}
	return things, nil
}

// PutThing writes a Thing's metadata file atomically via rename.
func (s *FlatFileStore) PutThing(ctx context.Context, t *model.Thing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thing %s: %w", t.ID, err)
	}
	return s.writeAtomic(s.metaPath(t.ID), data)
}

// DeleteThing removes a Thing's metadata and content files.
func (s *FlatFileStore) DeleteThing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.metaPath(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete thing %s: %w", id, err)
	}

	if err := os.Remove(s.docPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// GetDocument reads a Thing's markdown content file.
func (s *FlatFileStore) GetDocument(ctx context.Context, thingID string) (*model.ThingDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.docPath(thingID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", thingID, err)
	}

	info, err := os.Stat(s.docPath(thingID))
	updatedAt := time.Now()
	if err == nil {
		updatedAt = info.ModTime()
	}

	return &model.ThingDocument{
		ThingID:   thingID,
		Body:      string(data),
		UpdatedAt: updatedAt,
	}, nil
}

// PutDocument writes a Thing's markdown content file.
func (s *FlatFileStore) PutDocument(ctx context.Context, doc *model.ThingDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeAtomic(s.docPath(doc.ThingID), []byte(doc.Body))
}

// DeleteDocument removes a Thing's markdown content file. Missing documents
// are not an error: most Things never have one.
func (s *FlatFileStore) DeleteDocument(ctx context.Context, thingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.docPath(thingID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document %s: %w", thingID, err)
	}
	return nil
}

func (s *FlatFileStore) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

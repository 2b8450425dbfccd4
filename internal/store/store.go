// Package store persists Things as flat files: one JSON metadata file plus an
// optional markdown content file per entity, keyed by UUID. The in-memory
// implementation backs tests.
package store

import (
	"context"
	"errors"

	"github.com/ideate-ai/platform/internal/model"
)

// ErrNotFound is returned when a Thing or document does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface for Things and their markdown documents.
type Store interface {
	GetThing(ctx context.Context, id string) (*model.Thing, error)
	ListThings(ctx context.Context) ([]model.Thing, error)
	PutThing(ctx context.Context, t *model.Thing) error
	DeleteThing(ctx context.Context, id string) error

	GetDocument(ctx context.Context, thingID string) (*model.ThingDocument, error)
	PutDocument(ctx context.Context, doc *model.ThingDocument) error
	DeleteDocument(ctx context.Context, thingID string) error
}

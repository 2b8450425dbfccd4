package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideate-ai/platform/internal/model"
)

func newTestStore(t *testing.T) *FlatFileStore {
	t.Helper()
	st, err := NewFlatFileStore(t.TempDir())
	require.NoError(t, err)
	return st
}

func newThing(name string) *model.Thing {
	return &model.Thing{
		ID:    uuid.NewString(),
		Name:  name,
		Type:  model.ThingTypeNote,
		Order: 1,
	}
}

func TestFlatFileThingRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	want := newThing("round trip")
	want.ParentIDs = []string{uuid.NewString()}
	want.Properties = map[string]any{"pinned": true}

	require.NoError(t, st.PutThing(ctx, want))

	got, err := st.GetThing(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.ParentIDs, got.ParentIDs)
	assert.Equal(t, map[string]any{"pinned": true}, got.Properties)
}

func TestFlatFileGetMissing(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetThing(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlatFileListSkipsForeignFiles(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutThing(ctx, newThing("real")))

	// Files not named by a UUID, and non-json files, must not break listing.
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "README.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), uuid.NewString()+".json"), []byte("not json"), 0o644))

	things, err := st.ListThings(ctx)
	require.NoError(t, err)
	require.Len(t, things, 1)
	assert.Equal(t, "real", things[0].Name)
}

func TestFlatFileDeleteRemovesBothFiles(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	thing := newThing("doomed")
	require.NoError(t, st.PutThing(ctx, thing))
	require.NoError(t, st.PutDocument(ctx, &model.ThingDocument{ThingID: thing.ID, Body: "# notes"}))

	require.NoError(t, st.DeleteThing(ctx, thing.ID))

	_, err := st.GetThing(ctx, thing.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetDocument(ctx, thing.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.DeleteThing(ctx, thing.ID), ErrNotFound)
}

func TestFlatFileDocumentRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	thing := newThing("with doc")
	require.NoError(t, st.PutThing(ctx, thing))
	require.NoError(t, st.PutDocument(ctx, &model.ThingDocument{ThingID: thing.ID, Body: "# hello"}))

	doc, err := st.GetDocument(ctx, thing.ID)
	require.NoError(t, err)
	assert.Equal(t, "# hello", doc.Body)
	assert.False(t, doc.UpdatedAt.IsZero())
}

func TestFlatFileDeleteDocumentMissingIsNoError(t *testing.T) {
	st := newTestStore(t)
	assert.NoError(t, st.DeleteDocument(context.Background(), uuid.NewString()))
}

func TestFlatFilePutLeavesNoTempFiles(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutThing(ctx, newThing("a")))

	entries, err := os.ReadDir(st.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

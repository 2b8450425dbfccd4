package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideate-ai/platform/internal/model"
)

// fakeAPI is a scriptable ThingAPI double.
type fakeAPI struct {
	createFn func(req *model.CreateThingRequest) (*model.Thing, error)
	updateFn func(id string, req *model.UpdateThingRequest) (*model.Thing, error)
	deleteFn func(id string) error
}

func (f *fakeAPI) CreateThing(ctx context.Context, req *model.CreateThingRequest) (*model.Thing, error) {
	if f.createFn == nil {
		return nil, fmt.Errorf("unexpected CreateThing")
	}
	return f.createFn(req)
}

func (f *fakeAPI) UpdateThing(ctx context.Context, id string, req *model.UpdateThingRequest) (*model.Thing, error) {
	if f.updateFn == nil {
		return nil, fmt.Errorf("unexpected UpdateThing")
	}
	return f.updateFn(id, req)
}

func (f *fakeAPI) DeleteThing(ctx context.Context, id string) error {
	if f.deleteFn == nil {
		return fmt.Errorf("unexpected DeleteThing")
	}
	return f.deleteFn(id)
}

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func TestControllerCreateSwapsTempForConfirmed(t *testing.T) {
	api := &fakeAPI{
		createFn: func(req *model.CreateThingRequest) (*model.Thing, error) {
			return &model.Thing{ID: "server-1", Name: req.Name, Order: 99}, nil
		},
	}
	c := NewController(api, sequentialIDs("temp"))
	c.SetThings(nil)

	created, err := c.CreateThing(context.Background(), "note", "", "", "")
	require.NoError(t, err)

	assert.Equal(t, "server-1", created.ID)
	// The optimistic fractional position wins over the server's key.
	assert.Equal(t, float64(1), created.Order)
	assert.Equal(t, "server-1", c.Selected())
	assert.Empty(t, c.LastError())

	tree := c.Tree()
	require.Len(t, tree, 1)
	assert.Equal(t, "server-1", tree[0].ID)
}

func TestControllerCreateOptimisticSpliceAfterSibling(t *testing.T) {
	var spliced []string
	api := &fakeAPI{
		createFn: func(req *model.CreateThingRequest) (*model.Thing, error) {
			return &model.Thing{ID: "server-1", Name: req.Name, Order: 0}, nil
		},
	}
	c := NewController(api, func() string { return "temp-1" })
	c.SetThings([]model.Thing{
		{ID: "a", Name: "a", Order: 1},
		{ID: "b", Name: "b", Order: 2},
	})

	_, err := c.CreateThing(context.Background(), "mid", "", "a", "")
	require.NoError(t, err)

	for _, n := range c.Tree() {
		spliced = append(spliced, n.ID)
	}
	assert.Equal(t, []string{"a", "server-1", "b"}, spliced)
}

func TestControllerCreateRevertsOnFailure(t *testing.T) {
	api := &fakeAPI{
		createFn: func(req *model.CreateThingRequest) (*model.Thing, error) {
			return nil, fmt.Errorf("server down")
		},
	}
	c := NewController(api, sequentialIDs("temp"))
	c.SetThings([]model.Thing{{ID: "a", Name: "a", Order: 1}})

	_, err := c.CreateThing(context.Background(), "doomed", "", "", "")
	require.Error(t, err)

	tree := c.Tree()
	require.Len(t, tree, 1)
	assert.Equal(t, "a", tree[0].ID)
	assert.Empty(t, c.Selected())
	assert.Equal(t, "server down", c.LastError())
}

func TestControllerCreateUnderParent(t *testing.T) {
	api := &fakeAPI{
		createFn: func(req *model.CreateThingRequest) (*model.Thing, error) {
			assert.Equal(t, []string{"parent"}, req.ParentIDs)
			return &model.Thing{ID: "server-1", Name: req.Name, ParentIDs: req.ParentIDs, Order: 1}, nil
		},
	}
	c := NewController(api, sequentialIDs("temp"))
	c.SetThings([]model.Thing{{ID: "parent", Name: "parent", Order: 1}})

	created, err := c.CreateThing(context.Background(), "child", "parent", "", "")
	require.NoError(t, err)

	tree := c.Tree()
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, created.ID, tree[0].Children[0].ID)
}

func TestControllerRenameRevertsOnFailure(t *testing.T) {
	api := &fakeAPI{
		updateFn: func(id string, req *model.UpdateThingRequest) (*model.Thing, error) {
			return nil, fmt.Errorf("conflict")
		},
	}
	c := NewController(api, nil)
	c.SetThings([]model.Thing{{ID: "a", Name: "original", Order: 1}})

	err := c.RenameThing(context.Background(), "a", "renamed")
	require.Error(t, err)

	node := FindNode(c.Tree(), "a")
	require.NotNil(t, node)
	assert.Equal(t, "original", node.Label)
	assert.Equal(t, "conflict", c.LastError())
}

func TestControllerRenameSuccess(t *testing.T) {
	api := &fakeAPI{
		updateFn: func(id string, req *model.UpdateThingRequest) (*model.Thing, error) {
			return &model.Thing{ID: id, Name: *req.Name, Order: 1}, nil
		},
	}
	c := NewController(api, nil)
	c.SetThings([]model.Thing{{ID: "a", Name: "original", Order: 1}})

	require.NoError(t, c.RenameThing(context.Background(), "a", "renamed"))

	node := FindNode(c.Tree(), "a")
	require.NotNil(t, node)
	assert.Equal(t, "renamed", node.Label)
}

func TestControllerDeleteSelectsNextSibling(t *testing.T) {
	api := &fakeAPI{deleteFn: func(id string) error { return nil }}
	c := NewController(api, nil)
	c.SetThings([]model.Thing{
		{ID: "a", Name: "a", Order: 1},
		{ID: "b", Name: "b", Order: 2},
		{ID: "c", Name: "c", Order: 3},
	})
	c.Select("b")

	require.NoError(t, c.DeleteThing(context.Background(), "b"))
	assert.Equal(t, "c", c.Selected())
}

func TestControllerDeleteSelectsPreviousWhenLast(t *testing.T) {
	api := &fakeAPI{deleteFn: func(id string) error { return nil }}
	c := NewController(api, nil)
	c.SetThings([]model.Thing{
		{ID: "a", Name: "a", Order: 1},
		{ID: "b", Name: "b", Order: 2},
	})

	require.NoError(t, c.DeleteThing(context.Background(), "b"))
	assert.Equal(t, "a", c.Selected())
}

func TestControllerDeleteSelectsNoneWhenAlone(t *testing.T) {
	api := &fakeAPI{deleteFn: func(id string) error { return nil }}
	c := NewController(api, nil)
	c.SetThings([]model.Thing{{ID: "a", Name: "a", Order: 1}})

	require.NoError(t, c.DeleteThing(context.Background(), "a"))
	assert.Empty(t, c.Selected())
}

func TestControllerDeleteCascadesLocally(t *testing.T) {
	api := &fakeAPI{deleteFn: func(id string) error { return nil }}
	c := NewController(api, nil)
	c.SetThings([]model.Thing{
		{ID: "p", Name: "p", Order: 1},
		{ID: "q", Name: "q", Order: 2},
		{ID: "sole", Name: "sole", ParentIDs: []string{"p"}, Order: 1},
		{ID: "shared", Name: "shared", ParentIDs: []string{"p", "q"}, Order: 2},
	})

	require.NoError(t, c.DeleteThing(context.Background(), "p"))

	tree := c.Tree()
	assert.Nil(t, FindNode(tree, "sole"))

	// The multi-parent child survives under its remaining parent.
	q := FindNode(tree, "q")
	require.NotNil(t, q)
	require.Len(t, q.Children, 1)
	assert.Equal(t, "shared", q.Children[0].ID)
}

func TestControllerDeleteRevertsOnFailure(t *testing.T) {
	api := &fakeAPI{deleteFn: func(id string) error { return fmt.Errorf("locked") }}
	c := NewController(api, nil)
	c.SetThings([]model.Thing{
		{ID: "p", Name: "p", Order: 1},
		{ID: "c", Name: "c", ParentIDs: []string{"p"}, Order: 1},
	})
	c.Select("p")

	err := c.DeleteThing(context.Background(), "p")
	require.Error(t, err)

	tree := c.Tree()
	assert.NotNil(t, FindNode(tree, "p"))
	assert.NotNil(t, FindNode(tree, "c"))
	assert.Equal(t, "p", c.Selected())
	assert.Equal(t, "locked", c.LastError())
}

func TestControllerDeleteRevertRestoresParentLists(t *testing.T) {
	api := &fakeAPI{deleteFn: func(id string) error { return fmt.Errorf("locked") }}
	c := NewController(api, nil)
	c.SetThings([]model.Thing{
		{ID: "p", Name: "p", Order: 1},
		{ID: "q", Name: "q", Order: 2},
		{ID: "shared", Name: "shared", ParentIDs: []string{"p", "q"}, Order: 1},
	})

	require.Error(t, c.DeleteThing(context.Background(), "p"))

	// The cascade stripped p from shared's parents before the API failed; the
	// revert must restore the full parent list.
	tree := c.Tree()
	p := FindNode(tree, "p")
	require.NotNil(t, p)
	require.Len(t, p.Children, 1)
	assert.Equal(t, "shared", p.Children[0].ID)
}

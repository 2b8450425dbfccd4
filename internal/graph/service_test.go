package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideate-ai/platform/internal/model"
	"github.com/ideate-ai/platform/internal/store"
	"github.com/ideate-ai/platform/pkg/logger"
)

// fakePublisher records broadcast events in order.
type fakePublisher struct {
	events []model.ResourceEvent
}

func (p *fakePublisher) PublishResource(ev *model.ResourceEvent) error {
	p.events = append(p.events, *ev)
	return nil
}

func (p *fakePublisher) eventsFor(id string) []model.ResourceEvent {
	var out []model.ResourceEvent
	for _, ev := range p.events {
		if ev.ID == id {
			out = append(out, ev)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *fakePublisher) {
	t.Helper()
	st := store.NewMemoryStore()
	pub := &fakePublisher{}
	return NewService(st, pub, logger.NewNop()), st, pub
}

func mustPut(t *testing.T, st *store.MemoryStore, things ...model.Thing) {
	t.Helper()
	for i := range things {
		require.NoError(t, st.PutThing(context.Background(), &things[i]))
	}
}

func TestServiceCreateFirstRoot(t *testing.T) {
	svc, _, pub := newTestService(t)

	created, err := svc.Create(context.Background(), "user-1", &model.CreateThingRequest{Name: "first"})
	require.NoError(t, err)

	assert.Equal(t, float64(1), created.Order)
	assert.Equal(t, model.ThingTypeNote, created.Type)
	assert.Equal(t, "user-1", created.OwnerID)
	assert.NotEmpty(t, created.ID)

	events := pub.eventsFor(created.ID)
	require.Len(t, events, 1)
	assert.Equal(t, model.ResourceCreated, events[0].Type)
}

func TestServiceCreatePlacement(t *testing.T) {
	svc, st, _ := newTestService(t)
	mustPut(t, st,
		thing("a", 1),
		thing("b", 2),
	)

	// No anchor: head of the list.
	head, err := svc.Create(context.Background(), "u", &model.CreateThingRequest{Name: "head"})
	require.NoError(t, err)
	assert.Equal(t, float64(0), head.Order)

	// Anchored between a and b: midpoint.
	mid, err := svc.Create(context.Background(), "u", &model.CreateThingRequest{
		Name:           "mid",
		AfterSiblingID: "a",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.5, mid.Order)

	// Anchored after the last: tail.
	tail, err := svc.Create(context.Background(), "u", &model.CreateThingRequest{
		Name:           "tail",
		AfterSiblingID: "b",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(3), tail.Order)
}

func TestServiceCreateRebalancesCollapsedGap(t *testing.T) {
	svc, st, _ := newTestService(t)
	mustPut(t, st,
		thing("a", 1),
		thing("b", 1+1e-10),
	)

	created, err := svc.Create(context.Background(), "u", &model.CreateThingRequest{
		Name:           "between",
		AfterSiblingID: "a",
	})
	require.NoError(t, err)

	// After renumbering, a=1 and b=2; the insert lands at their midpoint.
	assert.Equal(t, 1.5, created.Order)

	a, err := st.GetThing(context.Background(), "a")
	require.NoError(t, err)
	b, err := st.GetThing(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, float64(1), a.Order)
	assert.Equal(t, float64(2), b.Order)
}

func TestServiceUpdatePartial(t *testing.T) {
	svc, st, _ := newTestService(t)
	mustPut(t, st, model.Thing{ID: "a", Name: "old", Type: "note", Order: 1})

	name := "new"
	updated, err := svc.Update(context.Background(), "a", &model.UpdateThingRequest{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, "note", updated.Type)
}

func TestServiceUpdateMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	name := "x"
	_, err := svc.Update(context.Background(), "missing", &model.UpdateThingRequest{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceDeleteCascadesSoleParentChain(t *testing.T) {
	svc, st, _ := newTestService(t)
	mustPut(t, st,
		thing("p", 1),
		thing("c", 1, "p"),
		thing("gc", 1, "c"),
		thing("unrelated", 2),
	)

	deleted, err := svc.Delete(context.Background(), "p")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p", "c", "gc"}, deleted)

	_, err = st.GetThing(context.Background(), "gc")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetThing(context.Background(), "unrelated")
	assert.NoError(t, err)
}

func TestServiceDeleteKeepsMultiParentChild(t *testing.T) {
	svc, st, pub := newTestService(t)
	mustPut(t, st,
		thing("p", 1),
		thing("q", 2),
		thing("shared", 1, "p", "q"),
	)

	deleted, err := svc.Delete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, deleted)

	// The surviving child loses p from its parent list and is persisted.
	shared, err := st.GetThing(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, shared.ParentIDs)

	events := pub.eventsFor("shared")
	require.NotEmpty(t, events)
	assert.Equal(t, model.ResourceUpdated, events[len(events)-1].Type)
}

func TestServiceDeleteRemovesDocument(t *testing.T) {
	svc, st, _ := newTestService(t)
	mustPut(t, st, thing("a", 1))
	require.NoError(t, st.PutDocument(context.Background(), &model.ThingDocument{ThingID: "a", Body: "notes"}))

	_, err := svc.Delete(context.Background(), "a")
	require.NoError(t, err)

	_, err = st.GetDocument(context.Background(), "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceDeleteBroadcastsEachDeletion(t *testing.T) {
	svc, st, pub := newTestService(t)
	mustPut(t, st,
		thing("p", 1),
		thing("c", 1, "p"),
	)

	_, err := svc.Delete(context.Background(), "p")
	require.NoError(t, err)

	var deletions int
	for _, ev := range pub.events {
		if ev.Type == model.ResourceDeleted {
			deletions++
		}
	}
	assert.Equal(t, 2, deletions)
}

func TestServiceDeleteMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceDocumentRoundTrip(t *testing.T) {
	svc, st, _ := newTestService(t)
	mustPut(t, st, thing("a", 1))

	_, err := svc.PutDocument(context.Background(), "a", "# notes")
	require.NoError(t, err)

	doc, err := svc.GetDocument(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "# notes", doc.Body)
}

func TestServiceDocumentRequiresThing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.PutDocument(context.Background(), "missing", "body")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceListFiltersByWorkspace(t *testing.T) {
	svc, st, _ := newTestService(t)
	mustPut(t, st,
		model.Thing{ID: "a", Name: "a", Order: 1, WorkspaceID: "ws-1"},
		model.Thing{ID: "b", Name: "b", Order: 1, WorkspaceID: "ws-2"},
		model.Thing{ID: "c", Name: "c", Order: 2},
	)

	inWs, err := svc.List(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, inWs, 1)
	assert.Equal(t, "a", inWs[0].ID)

	private, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Equal(t, "c", private[0].ID)
}

func TestServiceAddLink(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), "u", &model.CreateThingRequest{Name: "a"})
	require.NoError(t, err)

	updated, err := svc.AddLink(context.Background(), created.ID, "https://example.com", "Example")
	require.NoError(t, err)

	require.Len(t, updated.Links, 1)
	assert.Equal(t, "https://example.com", updated.Links[0].URL)
	assert.NotEmpty(t, updated.Links[0].ID)
}

func TestSiblings(t *testing.T) {
	things := []model.Thing{
		thing("root1", 1),
		thing("root2", 2),
		thing("child", 1, "root1"),
		{ID: "other-ws", Name: "other-ws", Order: 1, WorkspaceID: "ws-1"},
	}

	roots := Siblings(things, "", "")
	assert.Equal(t, []string{"root1", "root2"}, []string{roots[0].ID, roots[1].ID})

	children := Siblings(things, "root1", "")
	require.Len(t, children, 1)
	assert.Equal(t, "child", children[0].ID)
}

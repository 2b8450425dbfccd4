package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideate-ai/platform/internal/graph"
	"github.com/ideate-ai/platform/internal/middleware"
	"github.com/ideate-ai/platform/internal/model"
	"github.com/ideate-ai/platform/internal/store"
	"github.com/ideate-ai/platform/pkg/logger"
)

// identity injects authenticated-request context the way the auth middleware
// does, without a real token.
func identity(userID, workspaceID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			ctx = context.WithValue(ctx, middleware.WorkspaceIDKey, workspaceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newThingsRouter(t *testing.T) (chi.Router, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	svc := graph.NewService(st, nil, logger.NewNop())
	h := NewThingHandler(svc, logger.NewNop())

	r := chi.NewRouter()
	r.Use(identity("user-1", ""))
	r.Route("/api/things", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/tree", h.Tree)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Get("/document", h.GetDocument)
			r.Put("/document", h.PutDocument)
			r.Post("/links", h.AddLink)
			r.Post("/attachments", h.AddAttachment)
		})
	})
	return r, st
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeThing(t *testing.T, rec *httptest.ResponseRecorder) model.Thing {
	t.Helper()
	var thing model.Thing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thing))
	return thing
}

func putThing(t *testing.T, st *store.MemoryStore, thing model.Thing) model.Thing {
	t.Helper()
	if thing.ID == "" {
		thing.ID = uuid.NewString()
	}
	require.NoError(t, st.PutThing(context.Background(), &thing))
	return thing
}

func TestThingCreate(t *testing.T) {
	r, _ := newThingsRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/things", model.CreateThingRequest{Name: "first"})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeThing(t, rec)
	assert.Equal(t, "first", created.Name)
	assert.Equal(t, float64(1), created.Order)
	assert.Equal(t, "user-1", created.OwnerID)
}

func TestThingCreateValidation(t *testing.T) {
	r, _ := newThingsRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/things", model.CreateThingRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThingGet(t *testing.T) {
	r, st := newThingsRouter(t)
	thing := putThing(t, st, model.Thing{Name: "stored", Order: 1})

	rec := doJSON(t, r, http.MethodGet, "/api/things/"+thing.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stored", decodeThing(t, rec).Name)
}

func TestThingGetMissing(t *testing.T) {
	r, _ := newThingsRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/things/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThingGetInvalidID(t *testing.T) {
	r, _ := newThingsRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/things/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThingUpdate(t *testing.T) {
	r, _ := newThingsRouter(t)

	created := decodeThing(t, doJSON(t, r, http.MethodPost, "/api/things", model.CreateThingRequest{Name: "old"}))

	rec := doJSON(t, r, http.MethodPatch, "/api/things/"+created.ID, map[string]any{"name": "new"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", decodeThing(t, rec).Name)
}

func TestThingUpdateMissing(t *testing.T) {
	r, _ := newThingsRouter(t)

	rec := doJSON(t, r, http.MethodPatch, "/api/things/"+uuid.NewString(), map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThingDeleteReturnsCascadeIDs(t *testing.T) {
	r, st := newThingsRouter(t)

	parent := putThing(t, st, model.Thing{Name: "parent", Order: 1})
	child := putThing(t, st, model.Thing{Name: "child", ParentIDs: []string{parent.ID}, Order: 1})

	rec := doJSON(t, r, http.MethodDelete, "/api/things/"+parent.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Deleted []string `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{parent.ID, child.ID}, resp.Deleted)
}

func TestThingList(t *testing.T) {
	r, st := newThingsRouter(t)
	putThing(t, st, model.Thing{Name: "a", Order: 1})
	putThing(t, st, model.Thing{Name: "b", Order: 2})

	rec := doJSON(t, r, http.MethodGet, "/api/things", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ListThingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestThingTree(t *testing.T) {
	r, st := newThingsRouter(t)

	root := putThing(t, st, model.Thing{Name: "root", Order: 1})
	putThing(t, st, model.Thing{Name: "child", ParentIDs: []string{root.ID}, Order: 1})

	rec := doJSON(t, r, http.MethodGet, "/api/things/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Nodes []*graph.TreeNode `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Nodes, 1)
	require.Len(t, resp.Nodes[0].Children, 1)
	assert.Equal(t, "child", resp.Nodes[0].Children[0].Label)
}

func TestThingDocumentRoundTrip(t *testing.T) {
	r, st := newThingsRouter(t)
	thing := putThing(t, st, model.Thing{Name: "with doc", Order: 1})

	rec := doJSON(t, r, http.MethodPut,
		fmt.Sprintf("/api/things/%s/document", thing.ID),
		model.UpdateDocumentRequest{Body: "# hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/things/%s/document", thing.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc model.ThingDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "# hello", doc.Body)
}

func TestThingDocumentMissing(t *testing.T) {
	r, st := newThingsRouter(t)
	thing := putThing(t, st, model.Thing{Name: "no doc", Order: 1})

	rec := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/things/%s/document", thing.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThingAddLink(t *testing.T) {
	r, st := newThingsRouter(t)
	thing := putThing(t, st, model.Thing{Name: "linked", Order: 1})

	rec := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/things/%s/links", thing.ID),
		map[string]string{"url": "https://example.com", "title": "Example"})
	require.Equal(t, http.StatusCreated, rec.Code)

	updated := decodeThing(t, rec)
	require.Len(t, updated.Links, 1)
	assert.Equal(t, "https://example.com", updated.Links[0].URL)
}

func TestThingAddAttachment(t *testing.T) {
	r, st := newThingsRouter(t)
	thing := putThing(t, st, model.Thing{Name: "with file", Order: 1})

	rec := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/things/%s/attachments", thing.ID),
		map[string]any{"name": "diagram.png", "contentType": "image/png", "size": 2048})
	require.Equal(t, http.StatusCreated, rec.Code)

	updated := decodeThing(t, rec)
	require.Len(t, updated.Attachments, 1)
	assert.Equal(t, "diagram.png", updated.Attachments[0].Name)
	assert.Equal(t, int64(2048), updated.Attachments[0].Size)
	assert.NotEmpty(t, updated.Attachments[0].ID)
}

func TestThingAddAttachmentRequiresName(t *testing.T) {
	r, st := newThingsRouter(t)
	thing := putThing(t, st, model.Thing{Name: "with file", Order: 1})

	rec := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/things/%s/attachments", thing.ID),
		map[string]any{"contentType": "image/png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThingAddLinkRequiresURL(t *testing.T) {
	r, st := newThingsRouter(t)
	thing := putThing(t, st, model.Thing{Name: "linked", Order: 1})

	rec := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/things/%s/links", thing.ID),
		map[string]string{"title": "no url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

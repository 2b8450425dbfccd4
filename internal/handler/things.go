// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ideate-ai/platform/internal/graph"
	"github.com/ideate-ai/platform/internal/middleware"
	"github.com/ideate-ai/platform/internal/model"
	"github.com/ideate-ai/platform/internal/store"
	"github.com/ideate-ai/platform/pkg/logger"
	"github.com/ideate-ai/platform/pkg/metrics"
)

// ThingHandler handles Thing CRUD endpoints.
type ThingHandler struct {
	service *graph.Service
	logger  *logger.Logger
}

// NewThingHandler creates a new Thing handler.
func NewThingHandler(svc *graph.Service, log *logger.Logger) *ThingHandler {
	return &ThingHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/things
func (h *ThingHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateThingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateThingName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.service.Create(ctx, userID, &req)
	if err != nil {
		h.logger.Error("failed to create thing", "error", err)
		metrics.RecordThingOperation("create", "error")
		writeError(w, http.StatusInternalServerError, "failed to create thing")
		return
	}

	metrics.RecordThingOperation("create", "success")
	writeJSON(w, http.StatusCreated, t)
}

// List handles GET /api/things
func (h *ThingHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := r.URL.Query().Get("workspaceId")
	if workspaceID == "" {
		workspaceID = middleware.GetWorkspaceID(ctx)
	}

	things, err := h.service.List(ctx, workspaceID)
	if err != nil {
		h.logger.Error("failed to list things", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list things")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListThingsResponse{
		Things: things,
		Total:  len(things),
	})
}

// Tree handles GET /api/things/tree
func (h *ThingHandler) Tree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := r.URL.Query().Get("workspaceId")
	if workspaceID == "" {
		workspaceID = middleware.GetWorkspaceID(ctx)
	}

	tree, err := h.service.Tree(ctx, workspaceID)
	if err != nil {
		h.logger.Error("failed to build tree", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build tree")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"nodes": tree})
}

// Get handles GET /api/things/:id
func (h *ThingHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	thingID := chi.URLParam(r, "id")

	if err := middleware.ValidateThingID(thingID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.service.Get(ctx, thingID)
	if err != nil {
		writeError(w, http.StatusNotFound, "thing not found")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Update handles PATCH /api/things/:id
func (h *ThingHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	thingID := chi.URLParam(r, "id")

	if err := middleware.ValidateThingID(thingID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateThingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		if err := middleware.ValidateThingName(*req.Name); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	t, err := h.service.Update(ctx, thingID, &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordThingOperation("update", "not_found")
			writeError(w, http.StatusNotFound, "thing not found")
			return
		}
		h.logger.Error("failed to update thing", "error", err, "thing_id", thingID)
		metrics.RecordThingOperation("update", "error")
		writeError(w, http.StatusInternalServerError, "failed to update thing")
		return
	}

	metrics.RecordThingOperation("update", "success")
	writeJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/things/:id
func (h *ThingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	thingID := chi.URLParam(r, "id")

	if err := middleware.ValidateThingID(thingID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.service.Delete(ctx, thingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordThingOperation("delete", "not_found")
			writeError(w, http.StatusNotFound, "thing not found")
			return
		}
		h.logger.Error("failed to delete thing", "error", err, "thing_id", thingID)
		metrics.RecordThingOperation("delete", "error")
		writeError(w, http.StatusInternalServerError, "failed to delete thing")
		return
	}

	metrics.RecordThingOperation("delete", "success")
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// GetDocument handles GET /api/things/:id/document
func (h *ThingHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	thingID := chi.URLParam(r, "id")

	if err := middleware.ValidateThingID(thingID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.service.GetDocument(ctx, thingID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// PutDocument handles PUT /api/things/:id/document
func (h *ThingHandler) PutDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	thingID := chi.URLParam(r, "id")

	if err := middleware.ValidateThingID(thingID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateDocumentBody(req.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.service.PutDocument(ctx, thingID, req.Body)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "thing not found")
			return
		}
		h.logger.Error("failed to store document", "error", err, "thing_id", thingID)
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// AddAttachment handles POST /api/things/:id/attachments
func (h *ThingHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	thingID := chi.URLParam(r, "id")

	if err := middleware.ValidateThingID(thingID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType,omitempty"`
		Size        int64  `json:"size,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}

	t, err := h.service.AddAttachment(ctx, thingID, req.Name, req.ContentType, req.Size)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "thing not found")
			return
		}
		h.logger.Error("failed to add attachment", "error", err, "thing_id", thingID)
		writeError(w, http.StatusInternalServerError, "failed to add attachment")
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// AddLink handles POST /api/things/:id/links
func (h *ThingHandler) AddLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	thingID := chi.URLParam(r, "id")

	if err := middleware.ValidateThingID(thingID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		URL   string `json:"url"`
		Title string `json:"title,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url cannot be empty")
		return
	}

	t, err := h.service.AddLink(ctx, thingID, req.URL, req.Title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "thing not found")
			return
		}
		h.logger.Error("failed to add link", "error", err, "thing_id", thingID)
		writeError(w, http.StatusInternalServerError, "failed to add link")
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

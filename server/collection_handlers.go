package server

import (
	"net/http"
	"strings"

	"Romaly/core/auth"
	"Romaly/core/collection"
	"Romaly/storage"

	"github.com/gorilla/mux"
)

type collectionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type membershipRequest struct {
	TrackID string `json:"trackId"`
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// formField 区分“没有这个字段”和“字段为空”
func formField(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

// readCollectionRequest 支持 JSON 或带 coverFile 的 multipart，只解析不保存封面
func (h *APIHandler) readCollectionRequest(w http.ResponseWriter, r *http.Request) (collectionRequest, error) {
	var req collectionRequest
	if !isMultipart(r) {
		return req, decodeJSON(r, &req)
	}
	if err := parseMultipart(w, r, h.coverPolicy); err != nil {
		return req, err
	}
	req.Name = formField(r, "name")
	req.Description = formField(r, "description")
	return req, nil
}

// storeCover 没有上传封面时返回空 ref
func (h *APIHandler) storeCover(r *http.Request) (string, error) {
	if !isMultipart(r) {
		return "", nil
	}
	return h.storeUpload(r.Context(), r, "coverFile", h.coverPolicy, false)
}

func (h *APIHandler) GetCollectionsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := h.collections.List(r.Context(), pageParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *APIHandler) GetCollectionHandler(w http.ResponseWriter, r *http.Request) {
	v, err := h.collections.Get(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *APIHandler) CreateCollectionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFrom(ctx)
	req, err := h.readCollectionRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in collection.CreateInput
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if err := h.collections.PrecheckCreate(ctx, id, in); err != nil {
		writeError(w, r, err)
		return
	}
	cover, err := h.storeCover(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in.CoverRef = cover

	v, err := h.collections.Create(ctx, id, in)
	if err != nil {
		storage.Release(ctx, h.assets, cover)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *APIHandler) UpdateCollectionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFrom(ctx)
	collectionID := mux.Vars(r)["id"]
	req, err := h.readCollectionRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := collection.UpdateInput{Name: req.Name, Description: req.Description}
	if err := h.collections.PrecheckUpdate(ctx, id, collectionID, in); err != nil {
		writeError(w, r, err)
		return
	}
	cover, err := h.storeCover(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cover != "" {
		in.CoverRef = &cover
	}

	v, err := h.collections.Update(ctx, id, collectionID, in)
	if err != nil {
		storage.Release(ctx, h.assets, cover)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *APIHandler) DeleteCollectionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.collections.Delete(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Collection deleted. Its tracks are no longer in any collection.")
}

func (h *APIHandler) AddTrackToCollectionHandler(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TrackID == "" {
		writeMsg(w, http.StatusBadRequest, "trackId is required")
		return
	}
	v, err := h.collections.AddTrack(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"], req.TrackID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *APIHandler) RemoveTrackFromCollectionHandler(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TrackID == "" {
		writeMsg(w, http.StatusBadRequest, "trackId is required")
		return
	}
	if err := h.collections.RemoveTrack(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"], req.TrackID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Track removed from collection")
}

package server

import (
	"net/http"

	"Romaly/core/auth"
	"Romaly/core/track"
	"Romaly/storage"

	"github.com/gorilla/mux"
)

// GetTracksHandler 公开的已通过曲目，按上传时间倒序
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	page, err := h.tracks.ListApproved(r.Context(), pageParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *APIHandler) SearchTracksHandler(w http.ResponseWriter, r *http.Request) {
	page, err := h.tracks.Search(r.Context(), r.URL.Query().Get("q"), pageParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *APIHandler) GetPendingTracksHandler(w http.ResponseWriter, r *http.Request) {
	page, err := h.tracks.ListPending(r.Context(), auth.IdentityFrom(r.Context()), pageParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetTracksByAuthorHandler 本人或管理员能看到全部状态
func (h *APIHandler) GetTracksByAuthorHandler(w http.ResponseWriter, r *http.Request) {
	authorID := mux.Vars(r)["authorId"]
	page, err := h.tracks.ListByAuthor(r.Context(), auth.IdentityFrom(r.Context()), authorID, pageParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	v, err := h.tracks.Get(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// UploadTrackHandler multipart: title, collectionId（可选）, trackFile
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFrom(ctx)

	if err := parseMultipart(w, r, h.audioPolicy); err != nil {
		writeError(w, r, err)
		return
	}
	in := track.CreateInput{
		Title:        r.FormValue("title"),
		CollectionID: r.FormValue("collectionId"),
	}
	// 标题和合集先校验，不合法的请求不落盘
	if err := h.tracks.Precheck(ctx, id, in); err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := h.storeUpload(ctx, r, "trackFile", h.audioPolicy, true)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in.FileRef = ref
	v, err := h.tracks.Create(ctx, id, in)
	if err != nil {
		// 记录没建成，刚上传的文件不能留下
		storage.Release(ctx, h.assets, ref)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.tracks.Edit(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"], req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.tracks.Delete(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Track removed")
}

func (h *APIHandler) ApproveTrackHandler(w http.ResponseWriter, r *http.Request) {
	v, err := h.tracks.Approve(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *APIHandler) RejectTrackHandler(w http.ResponseWriter, r *http.Request) {
	v, err := h.tracks.Reject(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

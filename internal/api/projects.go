package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/projectstore"
	"github.com/starford/raido/internal/saver"
)

const maxSnapshotBytes = 50 << 20

// ProjectHandler serves project metadata, snapshots, and the store
// endpoints the remote-save client talks to.
type ProjectHandler struct {
	projects *projectstore.Service
}

func NewProjectHandler(projects *projectstore.Service) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// List handles GET /projects.
//
//	@Summary		List an owner's projects, newest first
//	@Tags			projects
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	ProjectListResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.projects.List(ownerID(r), limit, offset)
	if err != nil {
		slog.Error("list projects failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": items,
		"total":    total,
	})
}

// Recent handles GET /projects/recent: the owner's most recently saved
// project, used to restore the last session.
func (h *ProjectHandler) Recent(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Recent(ownerID(r))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no projects yet"))
			return
		}
		slog.Error("recent project failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Get handles GET /projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("get project failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Download handles GET /projects/{id}/download: the raw snapshot.
func (h *ProjectHandler) Download(w http.ResponseWriter, r *http.Request) {
	data, err := h.projects.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("download failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(data)
}

// Thumbnail handles GET /projects/{id}/thumbnail.
func (h *ProjectHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	data, err := h.projects.Thumbnail(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("thumbnail failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

// Create handles POST /projects: the store endpoint a remote-save client
// submits new snapshots to. Save parameters travel as query params, the
// snapshot as the body.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	snapshot, params, ok := h.readSubmission(w, r)
	if !ok {
		return
	}
	res, err := h.projects.CreateProject(r.Context(), snapshot, params)
	if err != nil {
		slog.Error("create project failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Update handles PUT /projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	snapshot, params, ok := h.readSubmission(w, r)
	if !ok {
		return
	}
	res, err := h.projects.UpdateProject(r.Context(), chi.URLParam(r, "id"), snapshot, params)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("update project failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ProjectHandler) readSubmission(w http.ResponseWriter, r *http.Request) ([]byte, saver.SaveParams, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSnapshotBytes)
	snapshot, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, saver.SaveParams{}, false
	}
	if len(snapshot) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("snapshot body is required"))
		return nil, saver.SaveParams{}, false
	}
	q := r.URL.Query()
	isCopy, _ := strconv.ParseBool(q.Get("is_copy"))
	isRemix, _ := strconv.ParseBool(q.Get("is_remix"))
	params := saver.SaveParams{
		Title:      q.Get("title"),
		OwnerID:    ownerID(r),
		OriginalID: q.Get("original_id"),
		IsCopy:     isCopy,
		IsRemix:    isRemix,
	}
	return snapshot, params, true
}

// StoreThumbnail handles POST /projects/{id}/thumbnail.
func (h *ProjectHandler) StoreThumbnail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("thumbnail body is required"))
		return
	}
	if err := h.projects.StoreThumbnail(r.Context(), chi.URLParam(r, "id"), data); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("store thumbnail failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Copy handles POST /projects/{id}/copy.
func (h *ProjectHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.duplicate(w, r, h.projects.Copy)
}

// Remix handles POST /projects/{id}/remix.
func (h *ProjectHandler) Remix(w http.ResponseWriter, r *http.Request) {
	h.duplicate(w, r, h.projects.Remix)
}

func (h *ProjectHandler) duplicate(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id, owner string) (*saver.SaveResult, error)) {
	res, err := fn(r.Context(), chi.URLParam(r, "id"), ownerID(r))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("duplicate project failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Delete handles DELETE /projects/{id}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete project failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/backpack"
)

// BackpackHandler serves the per-user backpack of reusable items.
type BackpackHandler struct {
	svc    *backpack.Service
	events publisher
}

type publisher interface {
	Publish(event string, data any)
}

func NewBackpackHandler(svc *backpack.Service, events publisher) *BackpackHandler {
	return &BackpackHandler{svc: svc, events: events}
}

// List handles GET /backpack with limit/offset paging.
func (h *BackpackHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	page, err := h.svc.List(ownerID(r), limit, offset)
	if err != nil {
		slog.Error("list backpack failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type saveItemRequest struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Body      string `json:"body"`      // base64 data url
	Thumbnail string `json:"thumbnail"` // base64 data url, optional for code
}

// Save handles POST /backpack. Bodies and thumbnails arrive as base64
// data URLs the way editors capture them.
func (h *BackpackHandler) Save(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 20<<20)
	var req saveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	mime, body, err := backpack.ParseDataURL(req.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("body must be a base64 data url"))
		return
	}
	payload := backpack.SavePayload{
		Type: req.Type,
		Name: req.Name,
		Mime: mime,
		Body: body,
	}
	if req.Thumbnail != "" {
		_, thumb, err := backpack.ParseDataURL(req.Thumbnail)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("thumbnail must be a base64 data url"))
			return
		}
		payload.Thumbnail = thumb
	}

	item, err := h.svc.Save(ownerID(r), payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if h.events != nil {
		h.events.Publish("backpack.updated", map[string]string{"id": item.ID, "owner_id": item.OwnerID})
	}
	writeJSON(w, http.StatusCreated, item)
}

// Body handles GET /backpack/{id}/body.
func (h *BackpackHandler) Body(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.svc.Body(chi.URLParam(r, "id"), ownerID(r))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("backpack body failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", mime)
	_, _ = w.Write(data)
}

// Thumbnail handles GET /backpack/{id}/thumbnail.
func (h *BackpackHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Thumbnail(chi.URLParam(r, "id"), ownerID(r))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("backpack thumbnail failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if data == nil {
		writeJSON(w, http.StatusNotFound, errorBody("item has no thumbnail"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

// Delete handles DELETE /backpack/{id}.
func (h *BackpackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(chi.URLParam(r, "id"), ownerID(r)); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete backpack item failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if h.events != nil {
		h.events.Publish("backpack.updated", map[string]string{"id": chi.URLParam(r, "id")})
	}
	w.WriteHeader(http.StatusNoContent)
}

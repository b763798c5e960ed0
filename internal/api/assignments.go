package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/classroom"
	"github.com/starford/raido/internal/models"
)

// AssignmentHandler serves classroom assignments and submissions.
type AssignmentHandler struct {
	svc *classroom.Service
}

func NewAssignmentHandler(svc *classroom.Service) *AssignmentHandler {
	return &AssignmentHandler{svc: svc}
}

// Create handles POST /assignments.
func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req classroom.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	a, err := h.svc.Create(ownerID(r), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// List handles GET /assignments for the acting creator.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(ownerID(r))
	if err != nil {
		slog.Error("list assignments failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": items})
}

// Get handles GET /assignments/{id}.
func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "get assignment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Update handles PUT /assignments/{id}.
func (h *AssignmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req classroom.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	a, err := h.svc.Update(chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, err, "update assignment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /assignments/{id}.
func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err, "delete assignment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// Assign handles POST /assignments/{id}/assign with a user or group id.
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	h.mutateTargets(w, r, h.svc.AssignUser, h.svc.AssignGroup)
}

// Unassign handles POST /assignments/{id}/unassign.
func (h *AssignmentHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	h.mutateTargets(w, r, h.svc.UnassignUser, h.svc.UnassignGroup)
}

func (h *AssignmentHandler) mutateTargets(w http.ResponseWriter, r *http.Request,
	userFn, groupFn func(id, target string) (*models.Assignment, error)) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	id := chi.URLParam(r, "id")
	var (
		a   *models.Assignment
		err error
	)
	switch {
	case req.UserID != "":
		a, err = userFn(id, req.UserID)
	case req.GroupID != "":
		a, err = groupFn(id, req.GroupID)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("user_id or group_id is required"))
		return
	}
	if err != nil {
		h.writeError(w, err, "assign")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Submit handles POST /assignments/{id}/submissions.
func (h *AssignmentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("project_id is required"))
		return
	}
	sub, err := h.svc.Submit(chi.URLParam(r, "id"), req.ProjectID, ownerID(r))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("project already submitted"))
			return
		}
		h.writeError(w, err, "submit")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Submissions handles GET /assignments/{id}/submissions.
func (h *AssignmentHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.Submissions(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "list submissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// FreezeAll handles POST /assignments/{id}/freeze, locking (or
// unlocking) every submission for grading.
func (h *AssignmentHandler) FreezeAll(w http.ResponseWriter, r *http.Request) {
	frozen := true
	if v := r.URL.Query().Get("frozen"); v != "" {
		frozen, _ = strconv.ParseBool(v)
	}
	n, err := h.svc.FreezeAll(chi.URLParam(r, "id"), frozen)
	if err != nil {
		h.writeError(w, err, "freeze all")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"frozen": frozen, "changed": n})
}

// Withdraw handles DELETE /submissions/{id}.
func (h *AssignmentHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Withdraw(chi.URLParam(r, "id"), ownerID(r))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("submission is frozen"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		slog.Error("withdraw failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// FreezeOne handles POST /submissions/{id}/freeze.
func (h *AssignmentHandler) FreezeOne(w http.ResponseWriter, r *http.Request) {
	frozen := true
	if v := r.URL.Query().Get("frozen"); v != "" {
		frozen, _ = strconv.ParseBool(v)
	}
	if err := h.svc.Freeze(chi.URLParam(r, "id"), frozen); err != nil {
		h.writeError(w, err, "freeze")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"frozen": frozen})
}

func (h *AssignmentHandler) writeError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

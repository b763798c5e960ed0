package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/projectstore"
	"github.com/starford/raido/internal/saver"
	"github.com/starford/raido/internal/session"
)

// SessionHandler exposes editing sessions over HTTP.
type SessionHandler struct {
	sessions *session.Manager
	projects *projectstore.Service
	events   publisher
}

func NewSessionHandler(sessions *session.Manager, projects *projectstore.Service, events publisher) *SessionHandler {
	return &SessionHandler{sessions: sessions, projects: projects, events: events}
}

type sessionResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	ProjectID string `json:"project_id,omitempty"`
	State     string `json:"state"`
	Changed   bool   `json:"changed"`
	Title     string `json:"title"`
}

func sessionBody(s *session.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		ProjectID: s.ProjectID(),
		State:     s.State().String(),
		Changed:   s.Changed(),
		Title:     s.Doc.Title(),
	}
}

// Open handles POST /sessions. An optional project_id in the body loads
// an existing project into the new session.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	s := h.sessions.Open(ownerID(r))
	if req.ProjectID != "" {
		snapshot, err := h.projects.Snapshot(req.ProjectID)
		if err != nil {
			_ = h.sessions.Close(s.ID, false)
			if errors.Is(err, apperr.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, errorBody("project not found"))
			} else {
				slog.Error("open project failed",
					slog.String("project_id", req.ProjectID),
					slog.String("error", err.Error()))
				writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			}
			return
		}
		if err := s.OpenProject(req.ProjectID, snapshot); err != nil {
			_ = h.sessions.Close(s.ID, false)
			writeJSON(w, http.StatusBadRequest, errorBody("snapshot is not loadable"))
			return
		}
	}
	writeJSON(w, http.StatusCreated, sessionBody(s))
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(s))
}

// Signals handles POST /sessions/{id}/signals: one tick of lifecycle
// signals, which may fire a create or update save.
func (h *SessionHandler) Signals(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	var sig saver.Signals
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	s.Apply(r.Context(), sig)
	writeJSON(w, http.StatusOK, sessionBody(s))
}

type opRequest struct {
	Op     string          `json:"op"`
	Name   string          `json:"name,omitempty"`
	Blocks json.RawMessage `json:"blocks,omitempty"`
	Type   string          `json:"type,omitempty"`
	Data   string          `json:"data,omitempty"` // base64 data url
}

// Ops handles POST /sessions/{id}/ops: a batch of document mutations.
// Each mutation marks the session changed and arms the autosave timer.
func (h *SessionHandler) Ops(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	var ops []opRequest
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	assetIDs := make([]string, 0, len(ops))
	for i, op := range ops {
		id, err := applyOp(s, op)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("op "+strconv.Itoa(i)+": "+err.Error()))
			return
		}
		if id != "" {
			assetIDs = append(assetIDs, id)
		}
	}
	resp := map[string]any{"session": sessionBody(s)}
	if len(assetIDs) > 0 {
		resp["asset_ids"] = assetIDs
	}
	writeJSON(w, http.StatusOK, resp)
}

// Save handles POST /sessions/{id}/save. The "as" query switches to
// copy or remix creation; default saves in place (creating on first
// save).
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}

	var res *saver.SaveResult
	switch r.URL.Query().Get("as") {
	case "":
		res, err = s.SaveNow(r.Context())
	case "copy":
		res, err = s.SaveAsCopy(r.Context())
	case "remix":
		res, err = s.SaveAsRemix(r.Context())
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown save mode"))
		return
	}
	if err != nil {
		if h.events != nil && !errors.Is(err, saver.ErrSaveInFlight) {
			h.events.Publish("project.save_failed", map[string]string{
				"session_id": s.ID,
				"project_id": s.ProjectID(),
			})
		}
		writeSaveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result":  res,
		"session": sessionBody(s),
	})
}

// writeSaveError maps the saver error taxonomy onto HTTP statuses. Asset
// rejections keep their upstream code so clients can distinguish quota
// and permission failures.
func writeSaveError(w http.ResponseWriter, err error) {
	var uploadErr *saver.AssetUploadError
	var remoteErr *saver.RemoteError
	switch {
	case errors.Is(err, saver.ErrSaveInFlight):
		writeJSON(w, http.StatusConflict, errorBodyCode("save already in flight", "SaveInFlight"))
	case errors.Is(err, saver.ErrClosed):
		writeJSON(w, http.StatusGone, errorBody("session closed"))
	case errors.As(err, &uploadErr):
		writeJSON(w, http.StatusBadGateway, errorBodyCode("asset upload failed", uploadErr.Code))
	case errors.As(err, &remoteErr):
		writeJSON(w, http.StatusBadGateway, errorBodyCode("remote "+remoteErr.Op+" rejected", "RemoteRejected"))
	default:
		slog.Error("save failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Close handles DELETE /sessions/{id}. Unsaved changes refuse teardown
// with 409 unless force=true, mirroring an unload confirmation.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	err := h.sessions.Close(chi.URLParam(r, "id"), !force)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, apperr.ErrUnsavedChanges):
		writeJSON(w, http.StatusConflict, errorBodyCode("session has unsaved changes", "UnsavedChanges"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
	default:
		slog.Error("close session failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

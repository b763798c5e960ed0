package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/backpack"
	"github.com/starford/raido/internal/classroom"
	"github.com/starford/raido/internal/projectstore"
	"github.com/starford/raido/internal/session"
	"github.com/starford/raido/internal/storage"
)

// Deps bundles the services the router serves.
type Deps struct {
	Sessions  *session.Manager
	Projects  *projectstore.Service
	Blobs     storage.Provider
	Backpack  *backpack.Service
	Classroom *classroom.Service
	// Events, if non-nil, is mounted at GET /events inside the auth
	// group and receives backpack publish calls.
	Events http.Handler
	// Publisher fans out backpack mutations; usually the same broker as
	// Events.
	Publisher interface {
		Publish(event string, data any)
	}
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	sh := NewSessionHandler(d.Sessions, d.Projects, d.Publisher)
	ph := NewProjectHandler(d.Projects)
	ah := NewAssetHandler(d.Projects, d.Blobs)
	bh := NewBackpackHandler(d.Backpack, d.Publisher)
	ch := NewAssignmentHandler(d.Classroom)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Editing sessions.
	r.Post("/sessions", sh.Open)
	r.Get("/sessions/{id}", sh.Get)
	r.Post("/sessions/{id}/signals", sh.Signals)
	r.Post("/sessions/{id}/ops", sh.Ops)
	r.Post("/sessions/{id}/save", sh.Save)
	r.Delete("/sessions/{id}", sh.Close)

	// Projects.
	r.Get("/projects", ph.List)
	r.Post("/projects", ph.Create)
	r.Get("/projects/recent", ph.Recent)
	r.Get("/projects/{id}", ph.Get)
	r.Put("/projects/{id}", ph.Update)
	r.Delete("/projects/{id}", ph.Delete)
	r.Get("/projects/{id}/download", ph.Download)
	r.Get("/projects/{id}/thumbnail", ph.Thumbnail)
	r.Post("/projects/{id}/thumbnail", ph.StoreThumbnail)
	r.Post("/projects/{id}/copy", ph.Copy)
	r.Post("/projects/{id}/remix", ph.Remix)

	// Content-addressed assets.
	r.Post("/assets/{type}/{ref}", ah.Upload)
	r.Get("/assets/{type}/{ref}", ah.Serve)

	// Backpack.
	r.Get("/backpack", bh.List)
	r.Post("/backpack", bh.Save)
	r.Get("/backpack/{id}/body", bh.Body)
	r.Get("/backpack/{id}/thumbnail", bh.Thumbnail)
	r.Delete("/backpack/{id}", bh.Delete)

	// Classroom assignments.
	r.Post("/assignments", ch.Create)
	r.Get("/assignments", ch.List)
	r.Get("/assignments/{id}", ch.Get)
	r.Put("/assignments/{id}", ch.Update)
	r.Delete("/assignments/{id}", ch.Delete)
	r.Post("/assignments/{id}/assign", ch.Assign)
	r.Post("/assignments/{id}/unassign", ch.Unassign)
	r.Post("/assignments/{id}/submissions", ch.Submit)
	r.Get("/assignments/{id}/submissions", ch.Submissions)
	r.Post("/assignments/{id}/freeze", ch.FreezeAll)
	r.Delete("/submissions/{id}", ch.Withdraw)
	r.Post("/submissions/{id}/freeze", ch.FreezeOne)

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}

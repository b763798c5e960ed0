// Package session hosts one editing session per open document: it wires
// the document's change hook into the persistence coordinator, applies
// lifecycle signals, and gates teardown on unsaved changes.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/saver"
)

// Session is one user's open document plus its coordinator.
type Session struct {
	ID        string
	OwnerID   string
	Doc       *document.Document
	coord     *saver.Coordinator
	log       *slog.Logger
	createdAt time.Time
}

func newSession(id, ownerID string, store saver.Store, log *slog.Logger, opts []saver.Option) *Session {
	doc := document.New()
	s := &Session{
		ID:        id,
		OwnerID:   ownerID,
		Doc:       doc,
		log:       log,
		createdAt: time.Now().UTC(),
	}
	opts = append(opts, saver.WithLogger(log))
	s.coord = saver.New(doc, store, opts...)
	// Every document mutation flips the changed flag and (when saveable)
	// arms the autosave debounce.
	doc.SetChangeHook(s.coord.MarkChanged)
	// Fresh sessions start with full local permissions; seeding does not
	// fire transition triggers.
	s.coord.Seed(saver.Signals{CanSave: true, CanCreateNew: true, ShowingWithoutID: true})
	return s
}

// OpenProject loads an existing project snapshot into the session and
// binds the coordinator to its remote id.
func (s *Session) OpenProject(id string, snapshot []byte) error {
	if err := s.Doc.Load(snapshot); err != nil {
		return fmt.Errorf("session: load snapshot: %w", err)
	}
	s.coord.BindProject(id)
	s.coord.Seed(saver.Signals{CanSave: true, ShowingWithID: true})
	return nil
}

// Apply feeds one tick of lifecycle signals into the coordinator.
func (s *Session) Apply(ctx context.Context, sig saver.Signals) {
	s.coord.Apply(ctx, sig)
}

// ProjectID returns the bound remote id, or "" before creation.
func (s *Session) ProjectID() string { return s.coord.ProjectID() }

// State returns the coordinator lifecycle state.
func (s *Session) State() saver.State { return s.coord.State() }

// Changed reports whether the session holds unsaved mutations.
func (s *Session) Changed() bool { return s.coord.Changed() }

// SaveNow performs an immediate save, creating the project if it has no
// remote id yet.
func (s *Session) SaveNow(ctx context.Context) (*saver.SaveResult, error) {
	id := s.coord.ProjectID()
	params := saver.SaveParams{Title: s.Doc.Title(), OwnerID: s.OwnerID}
	if id == "" {
		return s.coord.Save(ctx, "", params, saver.SaveOptions{Creating: true})
	}
	return s.coord.Save(ctx, id, params, saver.SaveOptions{})
}

// SaveAsCopy persists the current document as a new project pointing
// back at the original. On success the session is bound to the copy.
func (s *Session) SaveAsCopy(ctx context.Context) (*saver.SaveResult, error) {
	return s.duplicate(ctx, " copy", true, false)
}

// SaveAsRemix persists the current document as a remix of its original.
func (s *Session) SaveAsRemix(ctx context.Context) (*saver.SaveResult, error) {
	return s.duplicate(ctx, " remix", false, true)
}

func (s *Session) duplicate(ctx context.Context, suffix string, isCopy, isRemix bool) (*saver.SaveResult, error) {
	params := saver.SaveParams{
		Title:      s.Doc.Title() + suffix,
		OwnerID:    s.OwnerID,
		OriginalID: s.coord.ProjectID(),
		IsCopy:     isCopy,
		IsRemix:    isRemix,
	}
	return s.coord.Save(ctx, "", params, saver.SaveOptions{Creating: true})
}

// SaveThumbnail captures a client-rendered thumbnail on the document.
// The coordinator stores it after the next successful save.
func (s *Session) SaveThumbnail(data []byte) {
	s.Doc.SetThumbnail(data)
}

// CancelAutosave clears any pending autosave timer.
func (s *Session) CancelAutosave() {
	s.coord.CancelPendingAutosave()
}

// Close tears the session down. With unsaved changes and confirm set it
// refuses with apperr.ErrUnsavedChanges, mirroring an unload
// confirmation prompt; force closes regardless.
func (s *Session) Close(confirm bool) error {
	if confirm && s.coord.Changed() {
		return apperr.ErrUnsavedChanges
	}
	s.coord.Close()
	return nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/saver"
)

// memStore is an in-memory saver.Store for session tests.
type memStore struct {
	mu       sync.Mutex
	nextID   int
	projects map[string][]byte
	params   map[string]saver.SaveParams
	assets   map[string][]byte
	thumbs   map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{
		projects: map[string][]byte{},
		params:   map[string]saver.SaveParams{},
		assets:   map[string][]byte{},
		thumbs:   map[string][]byte{},
	}
}

func (s *memStore) CreateProject(_ context.Context, snapshot []byte, params saver.SaveParams) (*saver.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("proj-%d", s.nextID)
	s.projects[id] = snapshot
	s.params[id] = params
	return &saver.SaveResult{ID: id, Title: params.Title}, nil
}

func (s *memStore) UpdateProject(_ context.Context, id string, snapshot []byte, _ saver.SaveParams) (*saver.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return nil, apperr.ErrNotFound
	}
	s.projects[id] = snapshot
	return &saver.SaveResult{ID: id}, nil
}

func (s *memStore) StoreAsset(_ context.Context, _, _ string, data []byte, id string) (saver.Ack, error) {
	s.mu.Lock()
	s.assets[id] = data
	s.mu.Unlock()
	return saver.Ack{Status: "ok"}, nil
}

func (s *memStore) StoreThumbnail(_ context.Context, projectID string, data []byte) error {
	s.mu.Lock()
	s.thumbs[projectID] = data
	s.mu.Unlock()
	return nil
}

func (s *memStore) snapshot(id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[id]
}

func TestSaveNowCreatesThenUpdates(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)
	s := m.Open("alice")

	s.Doc.SetTitle("My Project")
	s.Doc.PutTarget("stage", json.RawMessage(`{"blocks":[]}`))
	if !s.Changed() {
		t.Fatal("mutation did not mark session changed")
	}

	res, err := s.SaveNow(context.Background())
	if err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if res.ID == "" || s.ProjectID() != res.ID {
		t.Fatalf("session not bound: res=%+v bound=%q", res, s.ProjectID())
	}
	if s.Changed() {
		t.Fatal("create did not clear changed")
	}

	s.Doc.SetTitle("Renamed")
	res2, err := s.SaveNow(context.Background())
	if err != nil {
		t.Fatalf("second SaveNow: %v", err)
	}
	if res2.ID != res.ID {
		t.Fatalf("update created a new project: %q vs %q", res2.ID, res.ID)
	}
	if len(store.snapshot(res.ID)) == 0 {
		t.Fatal("no snapshot stored")
	}
}

func TestSaveNowUploadsDirtyAssets(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)
	s := m.Open("alice")

	id := s.Doc.PutAsset("costume", "png", []byte("pixels"))
	if _, err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if _, ok := store.assets[id]; !ok {
		t.Fatal("dirty asset was not uploaded")
	}
	if !s.Doc.AssetClean(id) {
		t.Fatal("asset not marked clean after upload")
	}
}

func TestOpenProjectBindsAndUpdates(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)

	// Seed a project through a first session.
	first := m.Open("alice")
	first.Doc.SetTitle("Seeded")
	res, err := first.SaveNow(context.Background())
	if err != nil {
		t.Fatalf("seed save: %v", err)
	}

	s := m.Open("alice")
	if err := s.OpenProject(res.ID, store.snapshot(res.ID)); err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	if s.ProjectID() != res.ID {
		t.Fatalf("bound id = %q", s.ProjectID())
	}
	if s.Changed() {
		t.Fatal("loading a snapshot must not mark the session changed")
	}

	s.Doc.SetTitle("Edited")
	res2, err := s.SaveNow(context.Background())
	if err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if res2.ID != res.ID {
		t.Fatal("update went to a different project")
	}
}

func TestSaveAsCopyAndRemix(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)
	s := m.Open("alice")
	s.Doc.SetTitle("Base")
	orig, err := s.SaveNow(context.Background())
	if err != nil {
		t.Fatalf("SaveNow: %v", err)
	}

	cp, err := s.SaveAsCopy(context.Background())
	if err != nil {
		t.Fatalf("SaveAsCopy: %v", err)
	}
	if cp.ID == orig.ID {
		t.Fatal("copy reused the original id")
	}
	p := store.params[cp.ID]
	if !p.IsCopy || p.OriginalID != orig.ID || p.Title != "Base copy" {
		t.Fatalf("copy params = %+v", p)
	}
	if s.ProjectID() != cp.ID {
		t.Fatal("session not rebound to the copy")
	}

	rm, err := s.SaveAsRemix(context.Background())
	if err != nil {
		t.Fatalf("SaveAsRemix: %v", err)
	}
	p = store.params[rm.ID]
	if !p.IsRemix || p.OriginalID != cp.ID {
		t.Fatalf("remix params = %+v", p)
	}
}

func TestCloseRefusesUnsavedChanges(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)
	s := m.Open("alice")
	s.Doc.SetTitle("dirty")

	if err := m.Close(s.ID, true); !errors.Is(err, apperr.ErrUnsavedChanges) {
		t.Fatalf("close with unsaved changes: %v", err)
	}
	if _, err := m.Get(s.ID); err != nil {
		t.Fatal("refused close must keep the session alive")
	}

	if err := m.Close(s.ID, false); err != nil {
		t.Fatalf("forced close: %v", err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get after close: %v", err)
	}
}

func TestManagerCloseAll(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)
	m.Open("a")
	m.Open("b")
	if m.Len() != 2 {
		t.Fatalf("len = %d", m.Len())
	}
	m.CloseAll()
	if m.Len() != 0 {
		t.Fatalf("len after CloseAll = %d", m.Len())
	}
}

func TestSaveThumbnailStoredAfterSave(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)
	s := m.Open("alice")
	s.SaveThumbnail([]byte("jpeg"))

	res, err := s.SaveNow(context.Background())
	if err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	// Thumbnail storage runs detached; close joins it.
	if err := m.Close(s.ID, false); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(store.thumbs[res.ID]) != "jpeg" {
		t.Fatalf("thumbnail = %q", store.thumbs[res.ID])
	}
}

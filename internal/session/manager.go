package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/saver"
)

// Manager owns all live sessions of one server instance.
type Manager struct {
	store saver.Store
	log   *slog.Logger
	opts  []saver.Option

	// skipConfirm disables the unsaved-changes guard on Close.
	skipConfirm bool

	mu       sync.Mutex
	sessions map[string]*Session
}

// SkipUnloadConfirm disables the unsaved-changes check on session close.
// Intended for kiosk or classroom setups where sessions are disposable.
func (m *Manager) SkipUnloadConfirm(skip bool) {
	m.skipConfirm = skip
}

// NewManager creates a session manager. opts are applied to every
// session's coordinator.
func NewManager(store saver.Store, log *slog.Logger, opts ...saver.Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    store,
		log:      log,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open creates a new session for ownerID and returns it.
func (m *Manager) Open(ownerID string) *Session {
	id := uuid.NewString()
	s := newSession(id, ownerID, m.store, m.log.With(slog.String("session_id", id)), m.opts)
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.log.Info("session opened",
		slog.String("session_id", id),
		slog.String("owner_id", ownerID))
	return s
}

// Get returns a live session or apperr.ErrNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

// Close tears down one session. confirm refuses teardown when unsaved
// changes exist.
func (m *Manager) Close(id string, confirm bool) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	if m.skipConfirm {
		confirm = false
	}
	if err := s.Close(confirm); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	m.log.Info("session closed", slog.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll force-closes every session, used at server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		if s.Changed() {
			m.log.Warn("closing session with unsaved changes",
				slog.String("session_id", s.ID))
		}
		_ = s.Close(false)
	}
}

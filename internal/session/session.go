// Package session keeps one view controller per browser session.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/cultivar-map/internal/view"
)

// CookieName is the cookie carrying the session id.
const CookieName = "cultivar_session"

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Cookie returns the session cookie for id.
func Cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Session is one browser's map instance. Transitions are serialized by the
// session lock, so a session behaves like a single-threaded UI.
type Session struct {
	ID string

	mu       sync.Mutex
	lang     string
	ctrl     *view.Controller
	rec      *view.Recorder
	lastSeen time.Time
}

// Do runs fn against the session's controller and returns the surface
// commands it produced together with the resulting state.
func (s *Session) Do(fn func(c *view.Controller) error) ([]view.Command, view.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.ctrl)
	return s.rec.Drain(), s.ctrl.State(), err
}

// Snapshot returns the current state and the commands that rebuild the
// map from scratch.
func (s *Session) Snapshot() (view.State, []view.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Drain()
	return s.ctrl.State(), s.rec.Replay()
}

// Lang returns the session's display language.
func (s *Session) Lang() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// SetLang changes the display language.
func (s *Session) SetLang(lang string) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Manager owns all live sessions.
type Manager struct {
	layers view.Layers
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a manager whose sessions expire after ttl without
// activity. A zero ttl keeps sessions forever.
func NewManager(layers view.Layers, ttl time.Duration) *Manager {
	return &Manager{
		layers:   layers,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session in the landing view.
func (m *Manager) Create(lang string) *Session {
	rec := view.NewRecorder()
	ctrl := view.NewController(m.layers, rec)
	ctrl.Start()
	rec.Drain()

	s := &Session{
		ID:       uuid.NewString(),
		lang:     lang,
		ctrl:     ctrl,
		rec:      rec,
		lastSeen: m.now(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session and marks it as active.
func (m *Manager) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

// GetOrCreate returns the session for id, creating a fresh one when id is
// unknown. created reports which happened.
func (m *Manager) GetOrCreate(id, lang string) (s *Session, created bool) {
	if s, err := m.Get(id); err == nil {
		return s, false
	}
	return m.Create(lang), true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the ttl and returns how many
// were removed.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration, onSweep func(removed int)) {
	if m.ttl <= 0 || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

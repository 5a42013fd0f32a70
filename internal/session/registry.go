package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/metrics"
)

const DefaultSendBuffer = 100

// Session is one live outbound channel for a connected identity. The
// transport owning it drains SendCh until Done fires.
type Session struct {
	ID          string
	SendCh      chan events.Event
	ConnectedAt time.Time
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewSession(id string, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:          id,
		SendCh:      make(chan events.Event, buffer),
		ConnectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Send queues evt without blocking. It reports false when the session is
// closed or its buffer is full.
func (s *Session) Send(evt events.Event) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}

	select {
	case s.SendCh <- evt:
		return true
	default:
		return false
	}
}

// Done is closed once the session is superseded, unregistered or the
// registry stops.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) Close() {
	s.cancel()
}

type Info struct {
	ID          string
	ConnectedAt time.Time
}

// Registry binds identities to at most one live session. SendCh is never
// closed here: publishers may still hold a session from an earlier snapshot.
type Registry struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register binds s to s.ID. A previous session for the same id is closed and
// replaced; reconnecting clients are expected to re-register.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[s.ID]; ok && existing != s {
		slog.Warn("Session already registered, replacing", "session_id", s.ID)
		existing.Close()
	}

	r.sessions[s.ID] = s
	metrics.SetLiveSessions(len(r.sessions))

	slog.Info("Session registered",
		"session_id", s.ID,
		"total_sessions", len(r.sessions))
}

// Unregister removes s only while it is still the bound session for its id.
// A stale disconnect from a superseded session is a no-op.
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[s.ID]
	if !ok || current != s {
		s.Close()
		return false
	}

	s.Close()
	delete(r.sessions, s.ID)
	metrics.SetLiveSessions(len(r.sessions))

	slog.Info("Session unregistered",
		"session_id", s.ID,
		"total_sessions", len(r.sessions))
	return true
}

func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

// Snapshot returns the sessions registered at call time.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) List() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.sessions))
	for id, s := range r.sessions {
		infos = append(infos, Info{ID: id, ConnectedAt: s.ConnectedAt})
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		s.Close()
	}
	r.sessions = make(map[string]*Session)
	metrics.SetLiveSessions(0)
}

package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
)

// Store keeps users, samples, statuses and zones in process memory. It backs
// tests and single-node deployments that run with storage.driver=memory.
type Store struct {
	mu        sync.RWMutex
	users     map[string]users.User
	emails    map[string]string
	statuses  map[string]tracking.Status
	positions map[string][]tracking.Position
	geofences map[string]tracking.Geofence
	tokens    map[string]map[string]struct{}
}

func New() *Store {
	return &Store{
		users:     make(map[string]users.User),
		emails:    make(map[string]string),
		statuses:  make(map[string]tracking.Status),
		positions: make(map[string][]tracking.Position),
		geofences: make(map[string]tracking.Geofence),
		tokens:    make(map[string]map[string]struct{}),
	}
}

func (s *Store) SavePosition(_ context.Context, p tracking.Position) (tracking.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.positions[p.AgentID] = append(s.positions[p.AgentID], p)
	if _, ok := s.statuses[p.AgentID]; !ok {
		s.statuses[p.AgentID] = tracking.StatusInactive
	}
	return p, nil
}

func (s *Store) LatestPositions(_ context.Context, agentID string, n int) ([]tracking.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil, nil
	}

	all := s.positions[agentID]
	if n > len(all) {
		n = len(all)
	}
	out := make([]tracking.Position, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) GetStatus(_ context.Context, agentID string) (tracking.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.statuses[agentID]; ok {
		return st, nil
	}
	return tracking.StatusInactive, nil
}

func (s *Store) SetStatus(_ context.Context, agentID string, status tracking.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[agentID] = status
	return nil
}

func (s *Store) ListAgents(_ context.Context, role users.Role) ([]tracking.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []tracking.Agent
	for _, u := range s.users {
		if u.Role != role {
			continue
		}
		seen[u.ID] = true
		out = append(out, tracking.Agent{ID: u.ID, Name: u.Name, Status: s.statusLocked(u.ID)})
	}

	// agents known only through their samples
	if role == users.RoleAgent {
		for id, st := range s.statuses {
			if seen[id] {
				continue
			}
			if _, isUser := s.users[id]; isUser {
				continue
			}
			out = append(out, tracking.Agent{ID: id, Status: st})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) statusLocked(id string) tracking.Status {
	if st, ok := s.statuses[id]; ok {
		return st
	}
	return tracking.StatusInactive
}

func (s *Store) ListGeofences(_ context.Context) ([]tracking.Geofence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]tracking.Geofence, 0, len(s.geofences))
	for _, g := range s.geofences {
		out = append(out, g)
	}
	sortGeofences(out)
	return out, nil
}

func (s *Store) ListGeofencesByOwner(_ context.Context, ownerID string) ([]tracking.Geofence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tracking.Geofence
	for _, g := range s.geofences {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	sortGeofences(out)
	return out, nil
}

func (s *Store) CreateGeofence(_ context.Context, g tracking.Geofence) (tracking.Geofence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	s.geofences[g.ID] = g
	return g, nil
}

func (s *Store) GetGeofence(_ context.Context, id string) (tracking.Geofence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.geofences[id]
	if !ok {
		return tracking.Geofence{}, tracking.ErrGeofenceNotFound
	}
	return g, nil
}

func (s *Store) DeleteGeofence(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.geofences[id]; !ok {
		return tracking.ErrGeofenceNotFound
	}
	delete(s.geofences, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, u users.User) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.emails[email]; ok {
		return users.User{}, users.ErrEmailExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = email
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) AddDeviceToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return users.ErrUserNotFound
	}
	if s.tokens[userID] == nil {
		s.tokens[userID] = make(map[string]struct{})
	}
	s.tokens[userID][token] = struct{}{}
	return nil
}

func (s *Store) DeviceTokensByRole(_ context.Context, role users.Role) ([]users.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []users.DeviceToken
	for userID, tokens := range s.tokens {
		if s.users[userID].Role != role {
			continue
		}
		for token := range tokens {
			out = append(out, users.DeviceToken{UserID: userID, Token: token})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

func sortGeofences(gs []tracking.Geofence) {
	sort.Slice(gs, func(i, j int) bool {
		if !gs[i].CreatedAt.Equal(gs[j].CreatedAt) {
			return gs[i].CreatedAt.Before(gs[j].CreatedAt)
		}
		return gs[i].ID < gs[j].ID
	})
}

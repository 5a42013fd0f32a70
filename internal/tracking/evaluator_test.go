package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/geo"
	"github.com/lameck50/backend-kami/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(evt events.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return 0
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func zone(id string, enter, exit bool) Geofence {
	return Geofence{
		ID:           id,
		Name:         "zone-" + id,
		CenterLat:    0,
		CenterLon:    0,
		RadiusMeters: 100,
		AlertOnEnter: enter,
		AlertOnExit:  exit,
	}
}

var (
	outside = Position{AgentID: "agent-1", Lat: 0.01, Lon: 0.01}
	inside  = Position{AgentID: "agent-1", Lat: 0, Lon: 0}
)

func TestDetectCrossings_Enter(t *testing.T) {
	got := DetectCrossings(outside, inside, []Geofence{zone("a", true, false)})

	require.Len(t, got, 1)
	assert.Equal(t, events.CrossingEnter, got[0].Type)
	assert.Equal(t, "a", got[0].Fence.ID)
}

func TestDetectCrossings_EnterDisabled(t *testing.T) {
	got := DetectCrossings(outside, inside, []Geofence{zone("a", false, true)})
	assert.Empty(t, got)
}

func TestDetectCrossings_Exit(t *testing.T) {
	got := DetectCrossings(inside, outside, []Geofence{zone("a", true, true)})

	require.Len(t, got, 1)
	assert.Equal(t, events.CrossingExit, got[0].Type)
}

func TestDetectCrossings_ExitDisabled(t *testing.T) {
	got := DetectCrossings(inside, outside, []Geofence{zone("a", true, false)})
	assert.Empty(t, got)
}

func TestDetectCrossings_NoTransition(t *testing.T) {
	fences := []Geofence{zone("a", true, true)}

	assert.Empty(t, DetectCrossings(inside, inside, fences))
	assert.Empty(t, DetectCrossings(outside, outside, fences))
}

func TestDetectCrossings_BoundaryCountsAsInside(t *testing.T) {
	g := zone("a", true, true)
	edge := Position{Lat: 0.0001, Lon: 0}
	g.RadiusMeters = geo.DistanceMeters(edge.Point(), g.Center())

	got := DetectCrossings(outside, edge, []Geofence{g})
	require.Len(t, got, 1)
	assert.Equal(t, events.CrossingEnter, got[0].Type)
}

func TestDetectCrossings_AtMostOneEventPerZone(t *testing.T) {
	fences := []Geofence{zone("a", true, true), zone("b", true, true), zone("c", false, false)}
	moves := [][2]Position{{outside, inside}, {inside, outside}, {inside, inside}, {outside, outside}}

	for _, m := range moves {
		seen := map[string]int{}
		for _, c := range DetectCrossings(m[0], m[1], fences) {
			seen[c.Fence.ID]++
		}
		for id, n := range seen {
			assert.Equal(t, 1, n, "zone %s", id)
		}
	}
}

func TestDetectCrossings_MultipleZones(t *testing.T) {
	far := Geofence{ID: "far", CenterLat: 10, CenterLon: 10, RadiusMeters: 100, AlertOnEnter: true}
	got := DetectCrossings(outside, inside, []Geofence{zone("a", true, false), far, zone("b", true, false)})

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Fence.ID)
	assert.Equal(t, "b", got[1].Fence.ID)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SavePosition(ctx context.Context, p Position) (Position, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(Position), args.Error(1)
}

func (m *MockStore) LatestPositions(ctx context.Context, agentID string, n int) ([]Position, error) {
	args := m.Called(ctx, agentID, n)
	if v := args.Get(0); v != nil {
		return v.([]Position), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetStatus(ctx context.Context, agentID string) (Status, error) {
	args := m.Called(ctx, agentID)
	return args.Get(0).(Status), args.Error(1)
}

func (m *MockStore) SetStatus(ctx context.Context, agentID string, status Status) error {
	args := m.Called(ctx, agentID, status)
	return args.Error(0)
}

func (m *MockStore) ListGeofences(ctx context.Context) ([]Geofence, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]Geofence), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListAgents(ctx context.Context, role users.Role) ([]Agent, error) {
	args := m.Called(ctx, role)
	if v := args.Get(0); v != nil {
		return v.([]Agent), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestEvaluator_EvaluatePublishesAlerts(t *testing.T) {
	store := new(MockStore)
	store.On("ListGeofences", mock.Anything).Return([]Geofence{zone("a", true, false)}, nil)
	pub := &capturePublisher{}

	e := NewEvaluator(store, pub, EvaluatorConfig{})
	alerts, err := e.Evaluate(context.Background(), EvaluationJob{
		Agent:    Identity{ID: "agent-1", Name: "Amani"},
		Previous: outside,
		Current:  inside,
	})

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Amani", alerts[0].AgentName)
	assert.Equal(t, "zone-a", alerts[0].FenceName)
	require.Equal(t, 1, pub.count())
	assert.Equal(t, events.TypeGeofenceAlert, pub.events[0].Type)
}

func TestEvaluator_EvaluateStorageError(t *testing.T) {
	store := new(MockStore)
	store.On("ListGeofences", mock.Anything).Return(nil, assert.AnError)

	e := NewEvaluator(store, &capturePublisher{}, EvaluatorConfig{})
	_, err := e.Evaluate(context.Background(), EvaluationJob{Previous: outside, Current: inside})

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestEvaluator_EnqueueRequiresStart(t *testing.T) {
	store := new(MockStore)
	store.On("ListGeofences", mock.Anything).Return([]Geofence{zone("a", true, false)}, nil)
	pub := &capturePublisher{}
	e := NewEvaluator(store, pub, EvaluatorConfig{Workers: 2, QueueSize: 4})

	job := EvaluationJob{Agent: Identity{ID: "agent-1"}, Previous: outside, Current: inside}
	assert.False(t, e.Enqueue(job))

	e.Start(context.Background())
	assert.True(t, e.Enqueue(job))
	e.Stop()

	assert.Equal(t, 1, pub.count())
	assert.False(t, e.Enqueue(job))
}

func TestEvaluator_FullQueueDrops(t *testing.T) {
	store := new(MockStore)
	store.On("ListGeofences", mock.Anything).
		After(50*time.Millisecond).
		Return([]Geofence{}, nil)

	e := NewEvaluator(store, &capturePublisher{}, EvaluatorConfig{Workers: 1, QueueSize: 1})
	e.Start(context.Background())
	defer e.Stop()

	job := EvaluationJob{Agent: Identity{ID: "agent-1"}}
	accepted := 0
	for i := 0; i < 10; i++ {
		if e.Enqueue(job) {
			accepted++
		}
	}
	assert.Less(t, accepted, 10)
}

func TestShard_StablePerKey(t *testing.T) {
	assert.Equal(t, shard("agent-1", 8), shard("agent-1", 8))
	for _, k := range []string{"a", "b", "c", "agent-42"} {
		s := shard(k, 4)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, 4)
	}
}

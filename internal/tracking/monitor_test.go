package tracking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/store/memory"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyLatestStore struct {
	*memory.Store
	failFor string
}

func (f *flakyLatestStore) LatestPositions(ctx context.Context, agentID string, n int) ([]tracking.Position, error) {
	if agentID == f.failFor {
		return nil, errors.New("read timeout")
	}
	return f.Store.LatestPositions(ctx, agentID, n)
}

func seedAgent(t *testing.T, store *memory.Store, name string, status tracking.Status, lastSeen *time.Time) string {
	t.Helper()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, users.User{Name: name, Email: name + "@kami.test", Role: users.RoleAgent})
	require.NoError(t, err)
	if lastSeen != nil {
		_, err = store.SavePosition(ctx, tracking.Position{AgentID: u.ID, CapturedAt: *lastSeen})
		require.NoError(t, err)
	}
	require.NoError(t, store.SetStatus(ctx, u.ID, status))
	return u.ID
}

func TestSweep_DemotesStaleAgents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sixMinutesAgo := now.Add(-6 * time.Minute)
	fourMinutesAgo := now.Add(-4 * time.Minute)

	store := memory.New()
	stale := seedAgent(t, store, "stale", tracking.StatusOnDuty, &sixMinutesAgo)
	fresh := seedAgent(t, store, "fresh", tracking.StatusOnDuty, &fourMinutesAgo)
	silent := seedAgent(t, store, "silent", tracking.StatusOnDuty, nil)
	outOfZone := seedAgent(t, store, "away", tracking.StatusOutOfZone, &sixMinutesAgo)
	inactive := seedAgent(t, store, "idle", tracking.StatusInactive, nil)

	pub := &recordingPublisher{}
	m := tracking.NewInactivityMonitor(store, pub,
		tracking.WithThreshold(5*time.Minute),
		tracking.WithMonitorClock(func() time.Time { return now }))

	demoted, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, demoted)

	expect := map[string]tracking.Status{
		stale:     tracking.StatusSignalLost,
		fresh:     tracking.StatusOnDuty,
		silent:    tracking.StatusSignalLost,
		outOfZone: tracking.StatusOutOfZone,
		inactive:  tracking.StatusInactive,
	}
	for id, want := range expect {
		got, err := store.GetStatus(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}

	assert.Len(t, pub.ofType(events.TypeStatusChanged), 2)
}

func TestSweep_SignalLostIsLeftAlone(t *testing.T) {
	now := time.Now()
	old := now.Add(-time.Hour)
	store := memory.New()
	seedAgent(t, store, "lost", tracking.StatusSignalLost, &old)

	pub := &recordingPublisher{}
	m := tracking.NewInactivityMonitor(store, pub)

	demoted, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, demoted)
	assert.Empty(t, pub.ofType(events.TypeStatusChanged))
}

func TestSweep_FailureIsIsolatedPerAgent(t *testing.T) {
	now := time.Now()
	old := now.Add(-10 * time.Minute)
	mem := memory.New()
	broken := seedAgent(t, mem, "broken", tracking.StatusOnDuty, &old)
	healthy := seedAgent(t, mem, "healthy", tracking.StatusOnDuty, &old)

	store := &flakyLatestStore{Store: mem, failFor: broken}
	m := tracking.NewInactivityMonitor(store, &recordingPublisher{})

	demoted, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, demoted)

	st, _ := mem.GetStatus(context.Background(), healthy)
	assert.Equal(t, tracking.StatusSignalLost, st)
	st, _ = mem.GetStatus(context.Background(), broken)
	assert.Equal(t, tracking.StatusOnDuty, st)
}

func TestSweep_CancelledContextAbandonsRun(t *testing.T) {
	old := time.Now().Add(-time.Hour)
	store := memory.New()
	seedAgent(t, store, "a", tracking.StatusOnDuty, &old)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := tracking.NewInactivityMonitor(store, &recordingPublisher{})
	demoted, err := m.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, demoted)
}

func TestMonitor_StartStop(t *testing.T) {
	old := time.Now().Add(-time.Hour)
	store := memory.New()
	id := seedAgent(t, store, "ticker", tracking.StatusOnDuty, &old)

	m := tracking.NewInactivityMonitor(store, &recordingPublisher{}, tracking.WithInterval(10*time.Millisecond))
	m.Start(context.Background())
	m.Start(context.Background())

	assert.Eventually(t, func() bool {
		st, _ := store.GetStatus(context.Background(), id)
		return st == tracking.StatusSignalLost
	}, time.Second, 10*time.Millisecond)

	m.Stop()
	m.Stop()
}

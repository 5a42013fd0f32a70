package agents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/store/memory"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *countingPublisher) Publish(events.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return 0
}

func TestService_ListIncludesLastPosition(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, users.User{Name: "Amani", Email: "a@kami.test", Role: users.RoleAgent})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, users.User{Name: "Idle", Email: "i@kami.test", Role: users.RoleAgent})
	require.NoError(t, err)
	_, err = store.SavePosition(ctx, tracking.Position{AgentID: u.ID, Lat: 1, Lon: 2, CapturedAt: time.Now()})
	require.NoError(t, err)

	svc := NewService(store, &countingPublisher{})
	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byName := map[string]tracking.Agent{}
	for _, a := range list {
		byName[a.Name] = a
	}
	require.NotNil(t, byName["Amani"].LastPosition)
	assert.Equal(t, 1.0, byName["Amani"].LastPosition.Lat)
	assert.Nil(t, byName["Idle"].LastPosition)
}

func TestService_UpdateStatus(t *testing.T) {
	store := memory.New()
	pub := &countingPublisher{}
	svc := NewService(store, pub)
	ctx := context.Background()

	require.NoError(t, svc.UpdateStatus(ctx, "agent-1", "out_of_zone"))
	st, err := store.GetStatus(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusOutOfZone, st)
	assert.Equal(t, 1, pub.count)

	require.NoError(t, svc.UpdateStatus(ctx, "agent-1", "out_of_zone"))
	assert.Equal(t, 1, pub.count)

	assert.ErrorIs(t, svc.UpdateStatus(ctx, "agent-1", "signal_lost"), ErrReservedStatus)
	assert.ErrorIs(t, svc.UpdateStatus(ctx, "agent-1", "asleep"), tracking.ErrInvalidStatus)
}

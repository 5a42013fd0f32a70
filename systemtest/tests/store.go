package tests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T, env *Env) {
	ctx := context.Background()
	st := env.Store

	agent, err := st.CreateUser(ctx, users.User{
		Name:         "Store Agent",
		Email:        "Store.Agent@kami.local",
		PasswordHash: "x",
		Role:         users.RoleAgent,
		PostName:     "Limete",
	})
	require.NoError(t, err)
	assert.Equal(t, "store.agent@kami.local", agent.Email)
	assert.Equal(t, "Limete", agent.PostName)

	t.Run("unknown ids", func(t *testing.T) {
		_, err := st.GetUser(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, users.ErrUserNotFound)
		_, err = st.GetUser(ctx, uuid.NewString())
		assert.ErrorIs(t, err, users.ErrUserNotFound)
		_, err = st.GetStatus(ctx, uuid.NewString())
		assert.ErrorIs(t, err, tracking.ErrAgentNotFound)
		assert.ErrorIs(t, st.SetStatus(ctx, uuid.NewString(), tracking.StatusOnDuty), tracking.ErrAgentNotFound)
		_, err = st.SavePosition(ctx, tracking.Position{AgentID: uuid.NewString(), CapturedAt: time.Now()})
		assert.ErrorIs(t, err, tracking.ErrAgentNotFound)
		assert.ErrorIs(t, st.DeleteGeofence(ctx, uuid.NewString()), tracking.ErrGeofenceNotFound)
		assert.ErrorIs(t, st.AddDeviceToken(ctx, uuid.NewString(), "t"), users.ErrUserNotFound)
	})

	t.Run("status defaults to inactive", func(t *testing.T) {
		status, err := st.GetStatus(ctx, agent.ID)
		require.NoError(t, err)
		assert.Equal(t, tracking.StatusInactive, status)

		require.NoError(t, st.SetStatus(ctx, agent.ID, tracking.StatusOutOfZone))
		status, err = st.GetStatus(ctx, agent.ID)
		require.NoError(t, err)
		assert.Equal(t, tracking.StatusOutOfZone, status)
	})

	t.Run("latest positions newest first", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Microsecond)
		for i := 0; i < 3; i++ {
			_, err := st.SavePosition(ctx, tracking.Position{
				AgentID:    agent.ID,
				Lat:        float64(i),
				Lon:        float64(i),
				CapturedAt: base.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
		}

		latest, err := st.LatestPositions(ctx, agent.ID, 2)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, 2.0, latest[0].Lat)
		assert.Equal(t, 1.0, latest[1].Lat)
		assert.True(t, latest[0].CapturedAt.Equal(base.Add(2*time.Second)))
	})

	t.Run("equal timestamps come back in insertion order", func(t *testing.T) {
		at := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
		for _, lat := range []float64{10, 11} {
			_, err := st.SavePosition(ctx, tracking.Position{AgentID: agent.ID, Lat: lat, Lon: lat, CapturedAt: at})
			require.NoError(t, err)
		}

		latest, err := st.LatestPositions(ctx, agent.ID, 2)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, 11.0, latest[0].Lat)
		assert.Equal(t, 10.0, latest[1].Lat)
	})

	t.Run("geofences by owner", func(t *testing.T) {
		owner, err := st.CreateUser(ctx, users.User{Name: "Owner", Email: "owner@kami.local", PasswordHash: "x", Role: users.RoleSupervisor})
		require.NoError(t, err)

		g, err := st.CreateGeofence(ctx, tracking.Geofence{
			OwnerID: owner.ID, Name: "Depot", CenterLat: -4.3, CenterLon: 15.3,
			RadiusMeters: 100, AlertOnEnter: true,
		})
		require.NoError(t, err)

		mine, err := st.ListGeofencesByOwner(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, g.ID, mine[0].ID)
		assert.True(t, mine[0].AlertOnEnter)
		assert.False(t, mine[0].AlertOnExit)

		got, err := st.GetGeofence(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "Depot", got.Name)

		require.NoError(t, st.DeleteGeofence(ctx, g.ID))
		_, err = st.GetGeofence(ctx, g.ID)
		assert.ErrorIs(t, err, tracking.ErrGeofenceNotFound)
	})

	t.Run("device tokens by role", func(t *testing.T) {
		sup, err := st.CreateUser(ctx, users.User{Name: "Sup", Email: "sup-tokens@kami.local", PasswordHash: "x", Role: users.RoleSupervisor})
		require.NoError(t, err)

		require.NoError(t, st.AddDeviceToken(ctx, sup.ID, "tok-1"))
		require.NoError(t, st.AddDeviceToken(ctx, sup.ID, "tok-1"))
		require.NoError(t, st.AddDeviceToken(ctx, agent.ID, "agent-tok"))

		tokens, err := st.DeviceTokensByRole(ctx, users.RoleSupervisor)
		require.NoError(t, err)
		assert.Contains(t, tokens, users.DeviceToken{UserID: sup.ID, Token: "tok-1"})
		assert.NotContains(t, tokens, users.DeviceToken{UserID: agent.ID, Token: "agent-tok"})
	})
}

package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/lameck50/backend-kami/internal/api/http/dto"
	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 {
	return &v
}

// TestTracking drives an agent into a zone and expects the supervisor's live
// session to receive the crossing.
func TestTracking(t *testing.T, env *Env) {
	admin := login(t, env, seededAdminEmail, seededAdminPassword)
	agent := createUser(t, env, admin.Token, dto.CreateUserRequest{
		Name: "Amani", Email: "amani@kami.local", Password: "password123", Role: "agent",
	})
	supervisor := createUser(t, env, admin.Token, dto.CreateUserRequest{
		Name: "Neema", Email: "neema@kami.local", Password: "password123", Role: "supervisor",
	})

	rr := doJSON(env.Router, "POST", "/api/geofences", supervisor.Token, dto.CreateGeofenceRequest{
		Name: "Depot", CenterLat: ptr(-4.3250), CenterLon: ptr(15.3222), RadiusMeters: 200,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	live := session.NewSession(supervisor.User.ID, 32)
	env.Registry.Register(live)
	t.Cleanup(func() { env.Registry.Unregister(live) })

	// outside, then inside
	rr = doJSON(env.Router, "POST", "/api/positions", agent.Token, dto.PositionRequest{Latitude: ptr(-4.3400), Longitude: ptr(15.3222)})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	time.Sleep(10 * time.Millisecond)
	rr = doJSON(env.Router, "POST", "/api/positions", agent.Token, dto.PositionRequest{Latitude: ptr(-4.3251), Longitude: ptr(15.3222)})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var alert *events.GeofenceAlert
	deadline := time.After(5 * time.Second)
	for alert == nil {
		select {
		case evt := <-live.SendCh:
			if a, ok := evt.Data.(events.GeofenceAlert); ok {
				alert = &a
			}
		case <-deadline:
			t.Fatal("no geofence alert received")
		}
	}
	assert.Equal(t, agent.User.ID, alert.AgentID)
	assert.Equal(t, "Depot", alert.FenceName)
	assert.Equal(t, events.CrossingEnter, alert.EventType)

	rr = doJSON(env.Router, "GET", "/api/agents", supervisor.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"on_duty"`)
}

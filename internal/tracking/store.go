package tracking

import (
	"context"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/users"
)

// Store is the persistence contract the tracking core depends on.
type Store interface {
	SavePosition(ctx context.Context, p Position) (Position, error)
	// LatestPositions returns up to n samples for agentID, newest first.
	LatestPositions(ctx context.Context, agentID string, n int) ([]Position, error)
	GetStatus(ctx context.Context, agentID string) (Status, error)
	SetStatus(ctx context.Context, agentID string, status Status) error
	ListGeofences(ctx context.Context) ([]Geofence, error)
	ListAgents(ctx context.Context, role users.Role) ([]Agent, error)
}

type Publisher interface {
	Publish(evt events.Event) int
}

package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
)

// ErrReservedStatus is returned for statuses only the tracking pipeline may set.
var ErrReservedStatus = errors.New("status is managed by the inactivity monitor")

type Service struct {
	store     tracking.Store
	publisher tracking.Publisher
}

func NewService(store tracking.Store, publisher tracking.Publisher) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
	}
}

// List returns every agent with its status and last known position.
func (s *Service) List(ctx context.Context) ([]tracking.Agent, error) {
	agents, err := s.store.ListAgents(ctx, users.RoleAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	for i := range agents {
		latest, err := s.store.LatestPositions(ctx, agents[i].ID, 1)
		if err != nil {
			slog.Warn("Failed to load last position", "agent_id", agents[i].ID, "error", err)
			continue
		}
		if len(latest) > 0 {
			p := latest[0]
			agents[i].LastPosition = &p
		}
	}
	return agents, nil
}

// UpdateStatus applies an administrative status such as out_of_zone.
// signal_lost cannot be set by hand.
func (s *Service) UpdateStatus(ctx context.Context, agentID string, status string) error {
	parsed, err := tracking.ParseStatus(status)
	if err != nil {
		return err
	}
	if parsed == tracking.StatusSignalLost {
		return ErrReservedStatus
	}

	previous, err := s.store.GetStatus(ctx, agentID)
	if err != nil {
		if errors.Is(err, tracking.ErrAgentNotFound) {
			return err
		}
		return fmt.Errorf("failed to get status: %w", err)
	}

	if err := s.store.SetStatus(ctx, agentID, parsed); err != nil {
		if errors.Is(err, tracking.ErrAgentNotFound) {
			return err
		}
		return fmt.Errorf("failed to update status: %w", err)
	}

	if previous != parsed {
		s.publisher.Publish(events.New(events.TypeStatusChanged, events.StatusChanged{
			AgentID: agentID,
			From:    string(previous),
			To:      string(parsed),
		}))
	}

	slog.Info("Agent status updated", "agent_id", agentID, "status", parsed)
	return nil
}

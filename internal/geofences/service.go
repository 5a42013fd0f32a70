package geofences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
)

var ErrForbidden = errors.New("geofence belongs to another supervisor")

type Store interface {
	CreateGeofence(ctx context.Context, g tracking.Geofence) (tracking.Geofence, error)
	GetGeofence(ctx context.Context, id string) (tracking.Geofence, error)
	ListGeofences(ctx context.Context) ([]tracking.Geofence, error)
	ListGeofencesByOwner(ctx context.Context, ownerID string) ([]tracking.Geofence, error)
	DeleteGeofence(ctx context.Context, id string) error
}

type CreateParams struct {
	Name         string
	CenterLat    float64
	CenterLon    float64
	RadiusMeters float64
	AlertOnEnter bool
	AlertOnExit  bool
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create stores a zone owned by the caller. Changes to the zone list are
// picked up by the next geofence evaluation.
func (s *Service) Create(ctx context.Context, owner tracking.Identity, params CreateParams) (tracking.Geofence, error) {
	g := tracking.Geofence{
		OwnerID:      owner.ID,
		Name:         strings.TrimSpace(params.Name),
		CenterLat:    params.CenterLat,
		CenterLon:    params.CenterLon,
		RadiusMeters: params.RadiusMeters,
		AlertOnEnter: params.AlertOnEnter,
		AlertOnExit:  params.AlertOnExit,
	}
	if err := g.Validate(); err != nil {
		return tracking.Geofence{}, err
	}

	created, err := s.store.CreateGeofence(ctx, g)
	if err != nil {
		return tracking.Geofence{}, fmt.Errorf("failed to create geofence: %w", err)
	}

	slog.Info("Geofence created",
		"geofence_id", created.ID,
		"owner_id", owner.ID,
		"radius_meters", created.RadiusMeters)
	return created, nil
}

// List returns the caller's zones; admins see every zone.
func (s *Service) List(ctx context.Context, caller tracking.Identity) ([]tracking.Geofence, error) {
	var (
		out []tracking.Geofence
		err error
	)
	if caller.Role == string(users.RoleAdmin) {
		out, err = s.store.ListGeofences(ctx)
	} else {
		out, err = s.store.ListGeofencesByOwner(ctx, caller.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list geofences: %w", err)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, caller tracking.Identity, id string) error {
	g, err := s.store.GetGeofence(ctx, id)
	if err != nil {
		if errors.Is(err, tracking.ErrGeofenceNotFound) {
			return err
		}
		return fmt.Errorf("failed to get geofence: %w", err)
	}

	if g.OwnerID != caller.ID && caller.Role != string(users.RoleAdmin) {
		return ErrForbidden
	}

	if err := s.store.DeleteGeofence(ctx, id); err != nil {
		if errors.Is(err, tracking.ErrGeofenceNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete geofence: %w", err)
	}

	slog.Info("Geofence deleted", "geofence_id", id, "deleted_by", caller.ID)
	return nil
}

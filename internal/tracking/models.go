package tracking

import (
	"errors"
	"time"

	"github.com/lameck50/backend-kami/internal/geo"
)

type Status string

const (
	StatusInactive   Status = "inactive"
	StatusOnDuty     Status = "on_duty"
	StatusSignalLost Status = "signal_lost"
	StatusOutOfZone  Status = "out_of_zone"
)

var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrGeofenceNotFound = errors.New("geofence not found")
	ErrInvalidStatus    = errors.New("invalid status")
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusInactive, StatusOnDuty, StatusSignalLost, StatusOutOfZone:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// Identity is the caller as established by authentication.
type Identity struct {
	ID   string
	Name string
	Role string
}

// Position is an immutable location sample.
type Position struct {
	ID         string
	AgentID    string
	Lat        float64
	Lon        float64
	CapturedAt time.Time
}

func (p Position) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

type Geofence struct {
	ID           string
	OwnerID      string
	Name         string
	CenterLat    float64
	CenterLon    float64
	RadiusMeters float64
	AlertOnEnter bool
	AlertOnExit  bool
	CreatedAt    time.Time
}

func (g Geofence) Center() geo.Point {
	return geo.Point{Lat: g.CenterLat, Lon: g.CenterLon}
}

func (g Geofence) Validate() error {
	if g.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if !geo.Valid(g.Center()) {
		return &ValidationError{Field: "center", Reason: "must be a valid coordinate"}
	}
	if !(g.RadiusMeters > 0) {
		return &ValidationError{Field: "radius_meters", Reason: "must be greater than zero"}
	}
	return nil
}

// Agent is the status record of a tracked user.
type Agent struct {
	ID           string
	Name         string
	Status       Status
	LastPosition *Position
}

package tracking

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/geo"
	"github.com/lameck50/backend-kami/internal/metrics"
)

type Enqueuer interface {
	Enqueue(job EvaluationJob) bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

const ingestLockShards = 64

type Service struct {
	store       Store
	publisher   Publisher
	evaluations Enqueuer
	now         func() time.Time

	// held while an agent's predecessor is read and its new sample saved
	ingestLocks [ingestLockShards]sync.Mutex
}

func NewService(store Store, publisher Publisher, evaluations Enqueuer, opts ...Option) *Service {
	s := &Service{
		store:       store,
		publisher:   publisher,
		evaluations: evaluations,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores a new sample for the calling agent, puts the agent back on
// duty, announces the position and queues the geofence check. The returned
// error is either a *ValidationError or a *StorageError.
func (s *Service) Ingest(ctx context.Context, who Identity, lat, lon *float64) (Position, error) {
	if lat == nil {
		metrics.ObservePositionIngested(metrics.ResultInvalid)
		return Position{}, &ValidationError{Field: "latitude", Reason: "is required"}
	}
	if lon == nil {
		metrics.ObservePositionIngested(metrics.ResultInvalid)
		return Position{}, &ValidationError{Field: "longitude", Reason: "is required"}
	}
	if !geo.Valid(geo.Point{Lat: *lat, Lon: *lon}) {
		metrics.ObservePositionIngested(metrics.ResultInvalid)
		return Position{}, &ValidationError{Field: "coordinates", Reason: "out of range"}
	}

	saved, previous, err := s.save(ctx, Position{
		ID:         uuid.NewString(),
		AgentID:    who.ID,
		Lat:        *lat,
		Lon:        *lon,
		CapturedAt: s.now().UTC(),
	})
	if err != nil {
		metrics.ObservePositionIngested(metrics.ResultError)
		return Position{}, storageErr("save position", err)
	}

	if err := s.promote(ctx, who.ID); err != nil {
		metrics.ObservePositionIngested(metrics.ResultError)
		return Position{}, err
	}

	s.publisher.Publish(events.New(events.TypePositionUpdate, events.PositionUpdate{
		AgentID:    who.ID,
		Name:       who.Name,
		Lat:        saved.Lat,
		Lon:        saved.Lon,
		CapturedAt: saved.CapturedAt,
	}))

	s.scheduleEvaluation(who, saved, previous)

	metrics.ObservePositionIngested(metrics.ResultSuccess)
	return saved, nil
}

func (s *Service) promote(ctx context.Context, agentID string) error {
	current, err := s.store.GetStatus(ctx, agentID)
	if err != nil {
		return storageErr("get status", err)
	}
	if current == StatusOnDuty {
		return nil
	}

	if err := s.store.SetStatus(ctx, agentID, StatusOnDuty); err != nil {
		return storageErr("set status", err)
	}

	slog.Info("Agent status updated", "agent_id", agentID, "from", current, "to", StatusOnDuty)
	s.publisher.Publish(events.New(events.TypeStatusChanged, events.StatusChanged{
		AgentID: agentID,
		From:    string(current),
		To:      string(StatusOnDuty),
	}))
	return nil
}

// save stores p and returns the sample it follows. Ingests for the same
// agent are serialized here so concurrent samples each get their own
// predecessor. A failed history read only costs the evaluation.
func (s *Service) save(ctx context.Context, p Position) (Position, *Position, error) {
	mu := &s.ingestLocks[shard(p.AgentID, ingestLockShards)]
	mu.Lock()
	defer mu.Unlock()

	var previous *Position
	latest, err := s.store.LatestPositions(ctx, p.AgentID, 1)
	if err != nil {
		slog.Error("Failed to load previous position for geofence evaluation", "agent_id", p.AgentID, "error", err)
	} else if len(latest) > 0 {
		previous = &latest[0]
	}

	saved, err := s.store.SavePosition(ctx, p)
	if err != nil {
		return Position{}, nil, err
	}
	return saved, previous, nil
}

func (s *Service) scheduleEvaluation(who Identity, current Position, previous *Position) {
	if previous == nil {
		return
	}

	job := EvaluationJob{Agent: who, Current: current, Previous: *previous}
	if !s.evaluations.Enqueue(job) {
		slog.Warn("Geofence evaluation queue unavailable, skipping", "agent_id", who.ID)
	}
}

// RaiseAlert broadcasts a free-form alert from an agent.
func (s *Service) RaiseAlert(ctx context.Context, who Identity, message string) (events.GenericAlert, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return events.GenericAlert{}, &ValidationError{Field: "message", Reason: "is required"}
	}

	alert := events.GenericAlert{
		AgentID:    who.ID,
		AgentName:  who.Name,
		Message:    message,
		CapturedAt: s.now().UTC(),
	}
	s.publisher.Publish(events.New(events.TypeAlert, alert))

	slog.Info("Agent alert raised", "agent_id", who.ID)
	return alert, nil
}

// SendMessage relays a chat message to the recipient's live session. Messages
// are not stored; it reports whether the recipient was online.
func (s *Service) SendMessage(ctx context.Context, from Identity, recipientID, message string) (bool, error) {
	if recipientID == "" {
		return false, &ValidationError{Field: "recipient_id", Reason: "is required"}
	}
	if strings.TrimSpace(message) == "" {
		return false, &ValidationError{Field: "message", Reason: "is required"}
	}

	n := s.publisher.Publish(events.Direct(recipientID, events.TypeMessage, events.ChatMessage{
		SenderID:    from.ID,
		SenderName:  from.Name,
		RecipientID: recipientID,
		Message:     message,
		SentAt:      s.now().UTC(),
	}))

	slog.Debug("Chat message relayed", "from", from.ID, "to", recipientID, "delivered", n > 0)
	return n > 0, nil
}

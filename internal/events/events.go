package events

import "time"

type Type string

const (
	TypePositionUpdate Type = "position_update"
	TypeGeofenceAlert  Type = "geofence_alert"
	TypeAlert          Type = "alert"
	TypeMessage        Type = "message"
	TypeStatusChanged  Type = "status_changed"
	// TypeError answers a malformed client frame on the sender's session.
	TypeError Type = "error"
)

type CrossingType string

const (
	CrossingEnter CrossingType = "enter"
	CrossingExit  CrossingType = "exit"
)

// Event is the envelope delivered to live sessions and bus sinks. Events are
// transient: nothing in the pipeline persists them.
type Event struct {
	Type Type `json:"event"`
	// Recipient addresses a single session. Empty means broadcast.
	Recipient string    `json:"-"`
	Data      any       `json:"data"`
	At        time.Time `json:"at"`
}

type PositionUpdate struct {
	AgentID    string    `json:"agent_id"`
	Name       string    `json:"name"`
	Lat        float64   `json:"latitude"`
	Lon        float64   `json:"longitude"`
	CapturedAt time.Time `json:"timestamp"`
}

type GeofenceAlert struct {
	AgentID   string       `json:"agent_id"`
	AgentName string       `json:"agent_name"`
	FenceID   string       `json:"fence_id"`
	FenceName string       `json:"fence_name"`
	EventType CrossingType `json:"event_type"`
}

type GenericAlert struct {
	AgentID    string    `json:"agent_id"`
	AgentName  string    `json:"agent_name"`
	Message    string    `json:"message"`
	CapturedAt time.Time `json:"timestamp"`
}

type ChatMessage struct {
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

type StatusChanged struct {
	AgentID string `json:"agent_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

func New(t Type, data any) Event {
	return Event{Type: t, Data: data, At: time.Now().UTC()}
}

// Direct builds an event addressed to a single recipient.
func Direct(recipient string, t Type, data any) Event {
	evt := New(t, data)
	evt.Recipient = recipient
	return evt
}

func (e Event) IsDirect() bool {
	return e.Recipient != ""
}

type ErrorNotice struct {
	Message string `json:"message"`
}

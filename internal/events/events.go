package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the services.
const (
	TypePriorityEscalated = "card.priority_escalated"
	TypeSeriesLinked      = "meeting.series_linked"
	TypeCardsCarriedOver  = "meeting.cards_carried_over"
)

// Event is a domain event with a JSON payload.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants and doubles as the routing key
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload any, now time.Time) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: now.UTC(),
	}, nil
}

// PriorityEscalatedPayload is the payload of TypePriorityEscalated.
type PriorityEscalatedPayload struct {
	CardID      uuid.UUID `json:"cardId"`
	MeetingID   uuid.UUID `json:"meetingId"`
	OldPriority string    `json:"oldPriority"`
	NewPriority string    `json:"newPriority"`
	Reason      string    `json:"reason"`
}

// SeriesLinkedPayload is the payload of TypeSeriesLinked.
type SeriesLinkedPayload struct {
	MeetingID         uuid.UUID  `json:"meetingId"`
	SeriesID          uuid.UUID  `json:"seriesId"`
	SeriesNumber      int        `json:"seriesNumber"`
	PreviousMeetingID *uuid.UUID `json:"previousMeetingId,omitempty"`
}

// CardsCarriedOverPayload is the payload of TypeCardsCarriedOver.
type CardsCarriedOverPayload struct {
	MeetingID         uuid.UUID `json:"meetingId"`
	PreviousMeetingID uuid.UUID `json:"previousMeetingId"`
	Count             int       `json:"count"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}

// NoopEmitter drops every event.
type NoopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NoopEmitter) EmitEvent(context.Context, *Event) error { return nil }

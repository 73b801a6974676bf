package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActivityType classifies a CardActivity entry.
type ActivityType string

const (
	ActivityCreated        ActivityType = "created"
	ActivityCarryover      ActivityType = "carryover"
	ActivityPriorityChange ActivityType = "priority_change"
	ActivityStatusChange   ActivityType = "status_change"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityCreated, ActivityCarryover, ActivityPriorityChange, ActivityStatusChange:
		return true
	}
	return false
}

// CardActivity is an append-only audit entry. Entries are never mutated.
type CardActivity struct {
	ID        uuid.UUID       `json:"id"`
	CardID    uuid.UUID       `json:"card_id"`
	Type      ActivityType    `json:"type"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// PriorityChangeMetadata is the payload of a priority_change activity.
type PriorityChangeMetadata struct {
	Automated   bool     `json:"automated"`
	OldPriority Priority `json:"oldPriority"`
	NewPriority Priority `json:"newPriority"`
	Reason      string   `json:"reason,omitempty"`
}

// CarryoverMetadata is the payload of a carryover activity.
type CarryoverMetadata struct {
	SourceCardID         uuid.UUID `json:"sourceCardId"`
	CarriedFromMeetingID uuid.UUID `json:"carriedFromMeetingId"`
	OriginalMeetingID    uuid.UUID `json:"originalMeetingId"`
}

// StatusChangeMetadata is the payload of a status_change activity.
type StatusChangeMetadata struct {
	OldStatus     Status  `json:"oldStatus"`
	NewStatus     Status  `json:"newStatus"`
	HoursInStatus float64 `json:"hoursInStatus"`
	BlockedReason string  `json:"blockedReason,omitempty"`
}

// NewCardActivity builds an activity entry, encoding metadata as JSON.
func NewCardActivity(cardID uuid.UUID, activityType ActivityType, metadata any, now time.Time) (*CardActivity, error) {
	if cardID == uuid.Nil {
		return nil, NewValidationError("card_id", "activity card ID cannot be empty", nil)
	}
	if !activityType.Valid() {
		return nil, NewValidationError("type", "unknown activity type "+string(activityType), ErrInvalidActivityType)
	}

	payload := json.RawMessage("{}")
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return nil, NewValidationError("metadata", "metadata must be JSON encodable", err)
		}
		payload = encoded
	}

	return &CardActivity{
		ID:        uuid.New(),
		CardID:    cardID,
		Type:      activityType,
		Metadata:  payload,
		CreatedAt: now,
	}, nil
}

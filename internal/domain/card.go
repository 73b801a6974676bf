package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Card-specific validation errors
var (
	// ErrCardIDEmpty is returned when a card ID is empty or nil.
	ErrCardIDEmpty = NewValidationError("id", "card ID cannot be empty", nil)

	// ErrCardMeetingIDEmpty is returned when a card is not attached to a meeting.
	ErrCardMeetingIDEmpty = NewValidationError("meeting_id", "card meeting ID cannot be empty", nil)

	// ErrCardSummaryEmpty is returned when a card has no summary text.
	ErrCardSummaryEmpty = NewValidationError("summary", "card summary cannot be empty", nil)

	// ErrCardSourceMissing is returned when a carried-over card has no source card.
	ErrCardSourceMissing = NewValidationError(
		"source_card_id",
		"carried over card must reference its source card",
		nil,
	)
)

// Card is a unit of work extracted from a meeting.
//
// Status and priority are only changed by a person, by carryover on creation,
// or (priority only, and only upwards) by the automatic escalator. The
// TimeIn* fields accumulate hours spent in a status and are updated when the
// card leaves that status.
type Card struct {
	ID             uuid.UUID  `json:"id"`
	MeetingID      uuid.UUID  `json:"meeting_id"`
	Type           string     `json:"type"`
	Summary        string     `json:"summary"`
	Owner          string     `json:"owner,omitempty"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Context        string     `json:"context,omitempty"`
	InvolvedPeople []string   `json:"involved_people,omitempty"`

	CurrentStatusSince *time.Time `json:"current_status_since,omitempty"`
	TimeInToDo         float64    `json:"time_in_todo"`
	TimeInProgress     float64    `json:"time_in_progress"`
	TimeInBlocked      float64    `json:"time_in_blocked"`

	PriorityAutoUpdated bool       `json:"priority_auto_updated"`
	LastPriorityUpdate  *time.Time `json:"last_priority_update,omitempty"`

	CarriedOver       bool       `json:"carried_over"`
	SourceCardID      *uuid.UUID `json:"source_card_id,omitempty"`
	OriginalMeetingID *uuid.UUID `json:"original_meeting_id,omitempty"`

	BlockedSince  *time.Time `json:"blocked_since,omitempty"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	BlockedBy     string     `json:"blocked_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCard creates a card for a meeting. The card starts its status clock at
// now and is its own lineage root.
func NewCard(meetingID uuid.UUID, cardType, summary string, now time.Time) (*Card, error) {
	since := now
	root := meetingID
	card := &Card{
		ID:                 uuid.New(),
		MeetingID:          meetingID,
		Type:               cardType,
		Summary:            strings.TrimSpace(summary),
		Status:             StatusToDo,
		Priority:           PriorityMedium,
		CurrentStatusSince: &since,
		OriginalMeetingID:  &root,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}

// Validate checks if the Card has valid data.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}
	if c.MeetingID == uuid.Nil {
		return ErrCardMeetingIDEmpty
	}
	if strings.TrimSpace(c.Summary) == "" {
		return ErrCardSummaryEmpty
	}
	if !c.Status.Valid() {
		return NewValidationError("status", "unknown status "+string(c.Status), ErrInvalidStatus)
	}
	if !c.Priority.Valid() {
		return NewValidationError("priority", "unknown priority", ErrInvalidPriority)
	}
	if c.CarriedOver && c.SourceCardID == nil {
		return ErrCardSourceMissing
	}
	return nil
}

// IsBlocked reports whether the card is currently blocked.
func (c *Card) IsBlocked() bool {
	return c.Status == StatusBlocked
}

// TransitionTo moves the card into next, crediting the time spent in the
// current status to its cumulative counter and restarting the status clock.
// Blocked details are recorded on entry to Blocked and cleared on exit.
// It reports false, without touching the card, when next equals the current status.
func (c *Card) TransitionTo(next Status, now time.Time, blockedReason, blockedBy string) bool {
	if next == c.Status {
		return false
	}

	if c.CurrentStatusSince != nil {
		hours := now.Sub(*c.CurrentStatusSince).Hours()
		if hours < 0 {
			hours = 0
		}
		switch c.Status {
		case StatusToDo:
			c.TimeInToDo += hours
		case StatusInProgress:
			c.TimeInProgress += hours
		case StatusBlocked:
			c.TimeInBlocked += hours
		}
	}

	since := now
	c.Status = next
	c.CurrentStatusSince = &since

	if next == StatusBlocked {
		c.BlockedSince = &since
		c.BlockedReason = blockedReason
		c.BlockedBy = blockedBy
	} else {
		c.BlockedSince = nil
		c.BlockedReason = ""
		c.BlockedBy = ""
	}

	c.UpdatedAt = now
	return true
}

// SetPriorityManually records a priority chosen by a person. It clears the
// automatic flag so the UI can tell human and escalator changes apart.
func (c *Card) SetPriorityManually(p Priority, now time.Time) {
	at := now
	c.Priority = p
	c.PriorityAutoUpdated = false
	c.LastPriorityUpdate = &at
	c.UpdatedAt = now
}

// LineageRootMeetingID returns the first meeting this logical item appeared
// in, falling back to the card's own meeting.
func (c *Card) LineageRootMeetingID() uuid.UUID {
	if c.OriginalMeetingID != nil {
		return *c.OriginalMeetingID
	}
	return c.MeetingID
}

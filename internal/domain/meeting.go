package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Meeting-specific validation errors
var (
	ErrMeetingIDEmpty     = NewValidationError("id", "meeting ID cannot be empty", nil)
	ErrMeetingUserIDEmpty = NewValidationError("user_id", "meeting user ID cannot be empty", nil)
	ErrMeetingTitleEmpty  = NewValidationError("title", "meeting title cannot be empty", nil)
)

// Meeting is one occurrence of a (possibly recurring) meeting. Within a
// series, PreviousMeetingID and NextMeetingID form a doubly linked list.
type Meeting struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Title             string     `json:"title"`
	Date              time.Time  `json:"date"`
	SeriesID          *uuid.UUID `json:"series_id,omitempty"`
	SeriesNumber      *int       `json:"series_number,omitempty"`
	IsRecurring       bool       `json:"is_recurring"`
	Recurrence        Recurrence `json:"recurrence,omitempty"`
	PreviousMeetingID *uuid.UUID `json:"previous_meeting_id,omitempty"`
	NextMeetingID     *uuid.UUID `json:"next_meeting_id,omitempty"`
	ExpectedNextDate  *time.Time `json:"expected_next_date,omitempty"`
	CarryoverCount    int        `json:"carryover_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewMeeting creates an unlinked meeting owned by userID.
func NewMeeting(userID uuid.UUID, title string, date, now time.Time) (*Meeting, error) {
	m := &Meeting{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     strings.TrimSpace(title),
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks if the Meeting has valid data.
func (m *Meeting) Validate() error {
	if m.ID == uuid.Nil {
		return ErrMeetingIDEmpty
	}
	if m.UserID == uuid.Nil {
		return ErrMeetingUserIDEmpty
	}
	if m.Title == "" {
		return ErrMeetingTitleEmpty
	}
	if m.Recurrence != RecurrenceNone && !m.Recurrence.Valid() {
		return NewValidationError("recurrence", "unknown recurrence "+string(m.Recurrence), ErrInvalidRecurrence)
	}
	return nil
}

// MeetingTally is the per-meeting card count used to derive series averages.
type MeetingTally struct {
	MeetingID  uuid.UUID
	Date       time.Time
	TotalCards int
	DoneCards  int
}

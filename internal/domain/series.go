package domain

import (
	"time"

	"github.com/google/uuid"
)

// Recurrence is the cadence of a meeting series.
type Recurrence string

const (
	RecurrenceNone      Recurrence = ""
	RecurrenceWeekly    Recurrence = "weekly"
	RecurrenceBiweekly  Recurrence = "biweekly"
	RecurrenceMonthly   Recurrence = "monthly"
	RecurrenceQuarterly Recurrence = "quarterly"
)

// Valid reports whether r is a supported cadence. RecurrenceNone is not a cadence.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly, RecurrenceQuarterly:
		return true
	}
	return false
}

// Next returns the date one cadence period after from. Unknown cadences
// return from unchanged.
func (r Recurrence) Next(from time.Time) time.Time {
	switch r {
	case RecurrenceWeekly:
		return from.AddDate(0, 0, 7)
	case RecurrenceBiweekly:
		return from.AddDate(0, 0, 14)
	case RecurrenceMonthly:
		return from.AddDate(0, 1, 0)
	case RecurrenceQuarterly:
		return from.AddDate(0, 3, 0)
	}
	return from
}

// MeetingSeries is the identity shared by all meetings with the same
// canonical title for one user. Aggregates are derived from the member
// meetings and recomputed on every link.
type MeetingSeries struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	Title              string     `json:"title"`
	Recurrence         Recurrence `json:"recurrence"`
	TotalMeetings      int        `json:"total_meetings"`
	AvgCompletionRate  float64    `json:"avg_completion_rate"`
	AvgItemsPerMeeting float64    `json:"avg_items_per_meeting"`
	StartDate          time.Time  `json:"start_date"`
	LastMeetingDate    *time.Time `json:"last_meeting_date,omitempty"`
	NextMeetingDate    *time.Time `json:"next_meeting_date,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewMeetingSeries creates an active, empty series starting at now.
func NewMeetingSeries(userID uuid.UUID, title string, recurrence Recurrence, now time.Time) (*MeetingSeries, error) {
	s := &MeetingSeries{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      title,
		Recurrence: recurrence,
		StartDate:  now,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the MeetingSeries has valid data.
func (s *MeetingSeries) Validate() error {
	if s.ID == uuid.Nil {
		return NewValidationError("id", "series ID cannot be empty", nil)
	}
	if s.UserID == uuid.Nil {
		return NewValidationError("user_id", "series user ID cannot be empty", nil)
	}
	if s.Title == "" {
		return NewValidationError("title", "series title cannot be empty", nil)
	}
	if !s.Recurrence.Valid() {
		return NewValidationError("recurrence", "unknown recurrence "+string(s.Recurrence), ErrInvalidRecurrence)
	}
	return nil
}

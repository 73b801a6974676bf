package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// SeriesLink is the set of series fields written when a meeting joins a series.
type SeriesLink struct {
	SeriesID          uuid.UUID
	SeriesNumber      int
	Recurrence        domain.Recurrence
	PreviousMeetingID *uuid.UUID
	ExpectedNextDate  time.Time
}

// MeetingStore defines the interface for meeting data persistence.
type MeetingStore interface {
	// Create saves a new meeting.
	Create(ctx context.Context, meeting *domain.Meeting) error

	// GetByID retrieves a meeting by its unique ID.
	// Returns ErrMeetingNotFound if the meeting does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Meeting, error)

	// FindLatestInSeries returns the most recent meeting of a series by
	// meeting date, ignoring excludeID. Ties on date are broken by the higher
	// series number. Returns ErrMeetingNotFound when the series has no other meeting.
	FindLatestInSeries(ctx context.Context, seriesID, excludeID uuid.UUID) (*domain.Meeting, error)

	// AttachToSeries marks the meeting recurring and writes link.
	AttachToSeries(ctx context.Context, meetingID uuid.UUID, link SeriesLink) error

	// SetNextMeeting points meetingID's NextMeetingID at nextID.
	SetNextMeeting(ctx context.Context, meetingID, nextID uuid.UUID) error

	// SetCarryoverCount records how many cards were migrated into the meeting.
	SetCarryoverCount(ctx context.Context, meetingID uuid.UUID, count int) error

	// ListBySeries returns a series' meetings ordered by series number.
	ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]*domain.Meeting, error)

	// SeriesTallies returns the card counts of every meeting in a series.
	SeriesTallies(ctx context.Context, seriesID uuid.UUID) ([]domain.MeetingTally, error)

	// WithTx returns a MeetingStore that runs its statements on tx.
	WithTx(tx *sql.Tx) MeetingStore
}

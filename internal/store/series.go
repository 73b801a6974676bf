package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// SeriesStore defines the interface for meeting series persistence.
type SeriesStore interface {
	// FindActive returns the active series of userID with the given
	// canonical title. Returns ErrSeriesNotFound if none exists.
	FindActive(ctx context.Context, userID uuid.UUID, title string) (*domain.MeetingSeries, error)

	// Create saves a new series. Returns ErrSeriesExists when an active
	// series with the same user and title was created concurrently.
	Create(ctx context.Context, series *domain.MeetingSeries) error

	// GetByID retrieves a series by its unique ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MeetingSeries, error)

	// GetByIDForUpdate retrieves a series and locks its row until the
	// surrounding transaction ends, serializing links into the same series.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.MeetingSeries, error)

	// ListByUser returns every series owned by userID, most recently active first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.MeetingSeries, error)

	// UpdateAggregates writes the derived statistics of series.
	UpdateAggregates(ctx context.Context, series *domain.MeetingSeries) error

	// WithTx returns a SeriesStore that runs its statements on tx.
	WithTx(tx *sql.Tx) SeriesStore
}

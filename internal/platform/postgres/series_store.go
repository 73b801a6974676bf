package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/store"
)

const seriesColumns = `
	id, user_id, title, recurrence, total_meetings, avg_completion_rate,
	avg_items_per_meeting, start_date, last_meeting_date, next_meeting_date,
	is_active, created_at, updated_at`

// PostgresSeriesStore implements the store.SeriesStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSeriesStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSeriesStore creates a new PostgreSQL implementation of the SeriesStore interface.
func NewPostgresSeriesStore(db store.DBTX, logger *slog.Logger) *PostgresSeriesStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSeriesStore{
		db:     db,
		logger: logger.With(slog.String("component", "series_store")),
	}
}

var _ store.SeriesStore = (*PostgresSeriesStore)(nil)

// WithTx implements store.SeriesStore.WithTx
func (s *PostgresSeriesStore) WithTx(tx *sql.Tx) store.SeriesStore {
	return &PostgresSeriesStore{db: tx, logger: s.logger}
}

// FindActive implements store.SeriesStore.FindActive
func (s *PostgresSeriesStore) FindActive(
	ctx context.Context,
	userID uuid.UUID,
	title string,
) (*domain.MeetingSeries, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+seriesColumns+`
		FROM meeting_series
		WHERE user_id = $1 AND title = $2 AND is_active
	`, userID, title)
	return s.scanOne(ctx, row, "find active series")
}

// Create implements store.SeriesStore.Create
// A unique violation on (user_id, title, is_active) is reported as
// store.ErrSeriesExists so callers can re-run FindActive.
func (s *PostgresSeriesStore) Create(ctx context.Context, series *domain.MeetingSeries) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := series.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_series (`+seriesColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		series.ID,
		series.UserID,
		series.Title,
		string(series.Recurrence),
		series.TotalMeetings,
		series.AvgCompletionRate,
		series.AvgItemsPerMeeting,
		series.StartDate,
		nullTime(series.LastMeetingDate),
		nullTime(series.NextMeetingDate),
		series.IsActive,
		series.CreatedAt,
		series.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Info("series created concurrently",
				slog.String("user_id", series.UserID.String()),
				slog.String("title", series.Title))
			return fmt.Errorf("%w: %v", store.ErrSeriesExists, err)
		}
		log.Error("failed to create series",
			slog.String("series_id", series.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Info("series created",
		slog.String("series_id", series.ID.String()),
		slog.String("recurrence", string(series.Recurrence)))
	return nil
}

// GetByID implements store.SeriesStore.GetByID
func (s *PostgresSeriesStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MeetingSeries, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM meeting_series WHERE id = $1`, id)
	return s.scanOne(ctx, row, "get series by ID")
}

// GetByIDForUpdate implements store.SeriesStore.GetByIDForUpdate
func (s *PostgresSeriesStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.MeetingSeries, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM meeting_series WHERE id = $1 FOR UPDATE`, id)
	return s.scanOne(ctx, row, "lock series")
}

// ListByUser implements store.SeriesStore.ListByUser
func (s *PostgresSeriesStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.MeetingSeries, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+seriesColumns+`
		FROM meeting_series
		WHERE user_id = $1
		ORDER BY last_meeting_date DESC NULLS LAST, created_at DESC
	`, userID)
	if err != nil {
		log.Error("failed to list series",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*domain.MeetingSeries, 0)
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, series)
	}
	return list, rows.Err()
}

// UpdateAggregates implements store.SeriesStore.UpdateAggregates
func (s *PostgresSeriesStore) UpdateAggregates(ctx context.Context, series *domain.MeetingSeries) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE meeting_series
		SET total_meetings = $1, avg_completion_rate = $2, avg_items_per_meeting = $3,
		    last_meeting_date = $4, next_meeting_date = $5, updated_at = $6
		WHERE id = $7
	`,
		series.TotalMeetings,
		series.AvgCompletionRate,
		series.AvgItemsPerMeeting,
		nullTime(series.LastMeetingDate),
		nullTime(series.NextMeetingDate),
		series.UpdatedAt,
		series.ID,
	)
	if err != nil {
		log.Error("failed to update series aggregates",
			slog.String("series_id", series.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrSeriesNotFound)
}

func (s *PostgresSeriesStore) scanOne(ctx context.Context, row *sql.Row, op string) (*domain.MeetingSeries, error) {
	series, err := scanSeries(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSeriesNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("series query failed",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return series, nil
}

func scanSeries(row rowScanner) (*domain.MeetingSeries, error) {
	var (
		series     domain.MeetingSeries
		recurrence string
		last, next sql.NullTime
	)

	err := row.Scan(
		&series.ID,
		&series.UserID,
		&series.Title,
		&recurrence,
		&series.TotalMeetings,
		&series.AvgCompletionRate,
		&series.AvgItemsPerMeeting,
		&series.StartDate,
		&last,
		&next,
		&series.IsActive,
		&series.CreatedAt,
		&series.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	series.Recurrence = domain.Recurrence(recurrence)
	series.LastMeetingDate = timePtr(last)
	series.NextMeetingDate = timePtr(next)
	return &series, nil
}

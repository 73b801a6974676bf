package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/store"
)

const meetingColumns = `
	id, user_id, title, meeting_date, series_id, series_number, is_recurring,
	recurrence, previous_meeting_id, next_meeting_id, expected_next_date,
	carryover_count, created_at, updated_at`

// PostgresMeetingStore implements the store.MeetingStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMeetingStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMeetingStore creates a new PostgreSQL implementation of the MeetingStore interface.
func NewPostgresMeetingStore(db store.DBTX, logger *slog.Logger) *PostgresMeetingStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMeetingStore{
		db:     db,
		logger: logger.With(slog.String("component", "meeting_store")),
	}
}

var _ store.MeetingStore = (*PostgresMeetingStore)(nil)

// WithTx implements store.MeetingStore.WithTx
func (s *PostgresMeetingStore) WithTx(tx *sql.Tx) store.MeetingStore {
	return &PostgresMeetingStore{db: tx, logger: s.logger}
}

// Create implements store.MeetingStore.Create
func (s *PostgresMeetingStore) Create(ctx context.Context, m *domain.Meeting) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := m.Validate(); err != nil {
		log.Warn("meeting validation failed during create",
			slog.String("meeting_id", m.ID.String()),
			slog.String("error", err.Error()))
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		m.ID,
		m.UserID,
		m.Title,
		m.Date,
		nullUUID(m.SeriesID),
		nullInt(m.SeriesNumber),
		m.IsRecurring,
		nullString(string(m.Recurrence)),
		nullUUID(m.PreviousMeetingID),
		nullUUID(m.NextMeetingID),
		nullTime(m.ExpectedNextDate),
		m.CarryoverCount,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create meeting",
			slog.String("meeting_id", m.ID.String()),
			slog.String("user_id", m.UserID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("meeting created", slog.String("meeting_id", m.ID.String()))
	return nil
}

// GetByID implements store.MeetingStore.GetByID
func (s *PostgresMeetingStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id)
	return s.scanOne(ctx, row, "get meeting by ID", id)
}

// FindLatestInSeries implements store.MeetingStore.FindLatestInSeries
func (s *PostgresMeetingStore) FindLatestInSeries(
	ctx context.Context,
	seriesID, excludeID uuid.UUID,
) (*domain.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE series_id = $1 AND id <> $2
		ORDER BY meeting_date DESC, series_number DESC NULLS LAST
		LIMIT 1
	`, seriesID, excludeID)
	return s.scanOne(ctx, row, "find latest meeting in series", seriesID)
}

// AttachToSeries implements store.MeetingStore.AttachToSeries
func (s *PostgresMeetingStore) AttachToSeries(ctx context.Context, meetingID uuid.UUID, link store.SeriesLink) error {
	return s.exec(ctx, "attach meeting to series", meetingID, `
		UPDATE meetings
		SET series_id = $1, series_number = $2, is_recurring = TRUE, recurrence = $3,
		    previous_meeting_id = $4, expected_next_date = $5, updated_at = $6
		WHERE id = $7
	`,
		link.SeriesID,
		link.SeriesNumber,
		string(link.Recurrence),
		nullUUID(link.PreviousMeetingID),
		link.ExpectedNextDate,
		time.Now().UTC(),
		meetingID,
	)
}

// SetNextMeeting implements store.MeetingStore.SetNextMeeting
func (s *PostgresMeetingStore) SetNextMeeting(ctx context.Context, meetingID, nextID uuid.UUID) error {
	return s.exec(ctx, "set next meeting", meetingID,
		`UPDATE meetings SET next_meeting_id = $1, updated_at = $2 WHERE id = $3`,
		nextID, time.Now().UTC(), meetingID)
}

// SetCarryoverCount implements store.MeetingStore.SetCarryoverCount
func (s *PostgresMeetingStore) SetCarryoverCount(ctx context.Context, meetingID uuid.UUID, count int) error {
	return s.exec(ctx, "set carryover count", meetingID,
		`UPDATE meetings SET carryover_count = $1, updated_at = $2 WHERE id = $3`,
		count, time.Now().UTC(), meetingID)
}

// ListBySeries implements store.MeetingStore.ListBySeries
func (s *PostgresMeetingStore) ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]*domain.Meeting, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE series_id = $1
		ORDER BY series_number, meeting_date
	`, seriesID)
	if err != nil {
		log.Error("failed to list meetings by series",
			slog.String("series_id", seriesID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	meetings := make([]*domain.Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// SeriesTallies implements store.MeetingStore.SeriesTallies
func (s *PostgresMeetingStore) SeriesTallies(ctx context.Context, seriesID uuid.UUID) ([]domain.MeetingTally, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.meeting_date,
		       COUNT(c.id),
		       COUNT(c.id) FILTER (WHERE c.status = $2)
		FROM meetings m
		LEFT JOIN cards c ON c.meeting_id = m.id
		WHERE m.series_id = $1
		GROUP BY m.id, m.meeting_date
		ORDER BY m.meeting_date
	`, seriesID, domain.StatusDone)
	if err != nil {
		log.Error("failed to tally series meetings",
			slog.String("series_id", seriesID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tallies := make([]domain.MeetingTally, 0)
	for rows.Next() {
		var t domain.MeetingTally
		if err := rows.Scan(&t.MeetingID, &t.Date, &t.TotalCards, &t.DoneCards); err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

func (s *PostgresMeetingStore) exec(ctx context.Context, op string, meetingID uuid.UUID, query string, args ...any) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("meeting update failed",
			slog.String("operation", op),
			slog.String("meeting_id", meetingID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrMeetingNotFound)
}

func (s *PostgresMeetingStore) scanOne(ctx context.Context, row *sql.Row, op string, id uuid.UUID) (*domain.Meeting, error) {
	m, err := scanMeeting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMeetingNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("meeting query failed",
			slog.String("operation", op),
			slog.String("id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return m, nil
}

func scanMeeting(row rowScanner) (*domain.Meeting, error) {
	var (
		m                            domain.Meeting
		seriesID, previousID, nextID uuid.NullUUID
		seriesNumber                 sql.NullInt32
		recurrence                   sql.NullString
		expectedNext                 sql.NullTime
	)

	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Title,
		&m.Date,
		&seriesID,
		&seriesNumber,
		&m.IsRecurring,
		&recurrence,
		&previousID,
		&nextID,
		&expectedNext,
		&m.CarryoverCount,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.SeriesID = uuidPtr(seriesID)
	m.SeriesNumber = intPtr(seriesNumber)
	m.Recurrence = domain.Recurrence(recurrence.String)
	m.PreviousMeetingID = uuidPtr(previousID)
	m.NextMeetingID = uuidPtr(nextID)
	m.ExpectedNextDate = timePtr(expectedNext)
	return &m, nil
}

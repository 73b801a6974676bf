package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/store"
)

const cardColumns = `
	id, meeting_id, type, summary, owner, status, priority, due_date, context,
	involved_people, current_status_since, time_in_todo, time_in_progress,
	time_in_blocked, priority_auto_updated, last_priority_update, carried_over,
	source_card_id, original_meeting_id, blocked_since, blocked_reason,
	blocked_by, created_at, updated_at`

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// WithTx implements store.CardStore.WithTx
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{db: tx, logger: s.logger}
}

// Create implements store.CardStore.Create
func (s *PostgresCardStore) Create(ctx context.Context, card *domain.Card) error {
	return s.CreateMultiple(ctx, []*domain.Card{card})
}

// CreateMultiple implements store.CardStore.CreateMultiple
// All cards are validated before any row is written.
func (s *PostgresCardStore) CreateMultiple(ctx context.Context, cards []*domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(cards) == 0 {
		return nil
	}

	for _, card := range cards {
		if err := card.Validate(); err != nil {
			log.Warn("card validation failed during create",
				slog.String("card_id", card.ID.String()),
				slog.String("error", err.Error()))
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
	}

	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`

	for _, card := range cards {
		people, err := json.Marshal(peopleOrEmpty(card.InvolvedPeople))
		if err != nil {
			return fmt.Errorf("%w: involved people: %w", store.ErrInvalidEntity, err)
		}

		_, err = s.db.ExecContext(ctx, query,
			card.ID,
			card.MeetingID,
			card.Type,
			card.Summary,
			card.Owner,
			card.Status,
			card.Priority,
			nullTime(card.DueDate),
			card.Context,
			string(people),
			nullTime(card.CurrentStatusSince),
			card.TimeInToDo,
			card.TimeInProgress,
			card.TimeInBlocked,
			card.PriorityAutoUpdated,
			nullTime(card.LastPriorityUpdate),
			card.CarriedOver,
			nullUUID(card.SourceCardID),
			nullUUID(card.OriginalMeetingID),
			nullTime(card.BlockedSince),
			card.BlockedReason,
			card.BlockedBy,
			card.CreatedAt,
			card.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to insert card",
				slog.String("card_id", card.ID.String()),
				slog.String("meeting_id", card.MeetingID.String()),
				slog.String("error", err.Error()))
			return MapError(err)
		}
	}

	log.Debug("cards created", slog.Int("count", len(cards)))
	return nil
}

// GetByID implements store.CardStore.GetByID
func (s *PostgresCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to get card by ID",
			slog.String("card_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return card, nil
}

// ListByMeeting implements store.CardStore.ListByMeeting
func (s *PostgresCardStore) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*domain.Card, error) {
	return s.query(ctx, "list cards by meeting",
		`SELECT `+cardColumns+` FROM cards WHERE meeting_id = $1 ORDER BY created_at, id`,
		meetingID)
}

// ListCarryoverCandidates implements store.CardStore.ListCarryoverCandidates
func (s *PostgresCardStore) ListCarryoverCandidates(
	ctx context.Context,
	meetingID uuid.UUID,
) ([]*domain.Card, error) {
	return s.query(ctx, "list carryover candidates",
		`SELECT `+cardColumns+` FROM cards
		 WHERE meeting_id = $1 AND status <> $2
		 ORDER BY created_at, id`,
		meetingID, domain.StatusDone)
}

// ListActive implements store.CardStore.ListActive
func (s *PostgresCardStore) ListActive(ctx context.Context, afterID uuid.UUID, limit int) ([]*domain.Card, error) {
	return s.query(ctx, "list active cards",
		`SELECT `+cardColumns+` FROM cards
		 WHERE status <> $1 AND id > $2
		 ORDER BY id
		 LIMIT $3`,
		domain.StatusDone, afterID, limit)
}

// EscalatePriority implements store.CardStore.EscalatePriority
func (s *PostgresCardStore) EscalatePriority(
	ctx context.Context,
	cardID uuid.UUID,
	expected domain.Priority,
	status domain.Status,
	next domain.Priority,
	at time.Time,
) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET priority = $1, priority_auto_updated = TRUE, last_priority_update = $2, updated_at = $2
		WHERE id = $3 AND priority = $4 AND status = $5
	`, next, at, cardID, expected, status)
	if err != nil {
		log.Error("failed to escalate card priority",
			slog.String("card_id", cardID.String()),
			slog.String("error", err.Error()))
		return false, MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrConflict); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateStatus implements store.CardStore.UpdateStatus
func (s *PostgresCardStore) UpdateStatus(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET status = $1, current_status_since = $2, time_in_todo = $3, time_in_progress = $4,
		    time_in_blocked = $5, blocked_since = $6, blocked_reason = $7, blocked_by = $8,
		    updated_at = $9
		WHERE id = $10
	`,
		card.Status,
		nullTime(card.CurrentStatusSince),
		card.TimeInToDo,
		card.TimeInProgress,
		card.TimeInBlocked,
		nullTime(card.BlockedSince),
		card.BlockedReason,
		card.BlockedBy,
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		log.Error("failed to update card status",
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrCardNotFound)
}

// UpdatePriority implements store.CardStore.UpdatePriority
func (s *PostgresCardStore) UpdatePriority(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET priority = $1, priority_auto_updated = $2, last_priority_update = $3, updated_at = $4
		WHERE id = $5
	`,
		card.Priority,
		card.PriorityAutoUpdated,
		nullTime(card.LastPriorityUpdate),
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		log.Error("failed to update card priority",
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrCardNotFound)
}

func (s *PostgresCardStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query cards", slog.String("operation", op), slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	cards := make([]*domain.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			log.Error("failed to scan card row", slog.String("operation", op), slog.String("error", err.Error()))
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating card rows", slog.String("operation", op), slog.String("error", err.Error()))
		return nil, err
	}
	return cards, nil
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var (
		card                                     domain.Card
		people                                   []byte
		dueDate, since, lastUpdate, blockedSince sql.NullTime
		sourceCardID, originalMeetingID          uuid.NullUUID
	)

	err := row.Scan(
		&card.ID,
		&card.MeetingID,
		&card.Type,
		&card.Summary,
		&card.Owner,
		&card.Status,
		&card.Priority,
		&dueDate,
		&card.Context,
		&people,
		&since,
		&card.TimeInToDo,
		&card.TimeInProgress,
		&card.TimeInBlocked,
		&card.PriorityAutoUpdated,
		&lastUpdate,
		&card.CarriedOver,
		&sourceCardID,
		&originalMeetingID,
		&blockedSince,
		&card.BlockedReason,
		&card.BlockedBy,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(people) > 0 {
		if err := json.Unmarshal(people, &card.InvolvedPeople); err != nil {
			return nil, fmt.Errorf("failed to decode involved people: %w", err)
		}
	}
	if len(card.InvolvedPeople) == 0 {
		card.InvolvedPeople = nil
	}

	card.DueDate = timePtr(dueDate)
	card.CurrentStatusSince = timePtr(since)
	card.LastPriorityUpdate = timePtr(lastUpdate)
	card.BlockedSince = timePtr(blockedSince)
	card.SourceCardID = uuidPtr(sourceCardID)
	card.OriginalMeetingID = uuidPtr(originalMeetingID)

	return &card, nil
}

func peopleOrEmpty(people []string) []string {
	if people == nil {
		return []string{}
	}
	return people
}

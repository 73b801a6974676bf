package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/store"
)

// PostgresActivityStore implements the store.ActivityStore interface.
type PostgresActivityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresActivityStore creates a new PostgreSQL implementation of the ActivityStore interface.
func NewPostgresActivityStore(db store.DBTX, logger *slog.Logger) *PostgresActivityStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresActivityStore{
		db:     db,
		logger: logger.With(slog.String("component", "activity_store")),
	}
}

var _ store.ActivityStore = (*PostgresActivityStore)(nil)

// WithTx implements store.ActivityStore.WithTx
func (s *PostgresActivityStore) WithTx(tx *sql.Tx) store.ActivityStore {
	return &PostgresActivityStore{db: tx, logger: s.logger}
}

// Create implements store.ActivityStore.Create
func (s *PostgresActivityStore) Create(ctx context.Context, activity *domain.CardActivity) error {
	return s.CreateMultiple(ctx, []*domain.CardActivity{activity})
}

// CreateMultiple implements store.ActivityStore.CreateMultiple
func (s *PostgresActivityStore) CreateMultiple(ctx context.Context, activities []*domain.CardActivity) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, a := range activities {
		if !a.Type.Valid() {
			return fmt.Errorf("%w: activity type %q", store.ErrInvalidEntity, a.Type)
		}

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO card_activities (id, card_id, type, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, a.ID, a.CardID, string(a.Type), string(a.Metadata), a.CreatedAt)
		if err != nil {
			log.Error("failed to append card activity",
				slog.String("card_id", a.CardID.String()),
				slog.String("type", string(a.Type)),
				slog.String("error", err.Error()))
			return MapError(err)
		}
	}
	return nil
}

// ListByCard implements store.ActivityStore.ListByCard
func (s *PostgresActivityStore) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*domain.CardActivity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, type, metadata, created_at
		FROM card_activities
		WHERE card_id = $1
		ORDER BY created_at, id
	`, cardID)
	if err != nil {
		log.Error("failed to list card activity",
			slog.String("card_id", cardID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	activities := make([]*domain.CardActivity, 0)
	for rows.Next() {
		var (
			a        domain.CardActivity
			typ      string
			metadata []byte
		)
		if err := rows.Scan(&a.ID, &a.CardID, &typ, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = domain.ActivityType(typ)
		a.Metadata = metadata
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}

package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// ActivityStore persists the append-only card activity log.
type ActivityStore interface {
	// Create appends an activity entry.
	Create(ctx context.Context, activity *domain.CardActivity) error

	// CreateMultiple appends several entries. Run it inside a transaction.
	CreateMultiple(ctx context.Context, activities []*domain.CardActivity) error

	// ListByCard returns a card's activity, oldest first.
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]*domain.CardActivity, error)

	// WithTx returns an ActivityStore that runs its statements on tx.
	WithTx(tx *sql.Tx) ActivityStore
}

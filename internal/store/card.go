package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// CardStore defines the interface for card data persistence.
type CardStore interface {
	// Create saves a single card.
	Create(ctx context.Context, card *domain.Card) error

	// CreateMultiple saves multiple cards. Run it inside a transaction
	// for all-or-nothing behavior.
	CreateMultiple(ctx context.Context, cards []*domain.Card) error

	// GetByID retrieves a card by its unique ID.
	// Returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// ListByMeeting returns the cards of a meeting ordered by creation time.
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*domain.Card, error)

	// ListCarryoverCandidates returns the cards of a meeting whose status is not Done.
	ListCarryoverCandidates(ctx context.Context, meetingID uuid.UUID) ([]*domain.Card, error)

	// ListActive returns up to limit cards whose status is not Done and whose
	// id sorts after afterID (uuid.Nil starts from the beginning), ordered by id.
	ListActive(ctx context.Context, afterID uuid.UUID, limit int) ([]*domain.Card, error)

	// EscalatePriority sets the card's priority to next, marks it as
	// automatically updated and stamps LastPriorityUpdate, but only while the
	// stored priority and status still equal expected and status. It reports
	// false when the guard did not match, including when the card is gone.
	EscalatePriority(
		ctx context.Context,
		cardID uuid.UUID,
		expected domain.Priority,
		status domain.Status,
		next domain.Priority,
		at time.Time,
	) (bool, error)

	// UpdateStatus persists the status bookkeeping of card (status, the
	// status clock, accumulated durations and blocked fields).
	// Returns ErrCardNotFound if the card does not exist.
	UpdateStatus(ctx context.Context, card *domain.Card) error

	// UpdatePriority persists a priority edit along with its flag and timestamp.
	// Returns ErrCardNotFound if the card does not exist.
	UpdatePriority(ctx context.Context, card *domain.Card) error

	// WithTx returns a CardStore that runs its statements on tx.
	WithTx(tx *sql.Tx) CardStore
}

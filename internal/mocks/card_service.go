package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/service"
)

// MockCardService implements api.CardService for testing
type MockCardService struct {
	UpdateStatusFn   func(ctx context.Context, userID, cardID uuid.UUID, change service.StatusChange) (*domain.Card, error)
	UpdatePriorityFn func(ctx context.Context, userID, cardID uuid.UUID, priority domain.Priority) (*domain.Card, error)
	TimeInStatusFn   func(ctx context.Context, userID, cardID uuid.UUID) (lifecycle.TimeInStatus, error)
	LineageFn        func(ctx context.Context, userID, cardID uuid.UUID) ([]*domain.Card, error)

	// Default return values
	Card               *domain.Card
	LineageResult      []*domain.Card
	TimeInStatusResult lifecycle.TimeInStatus
	DefaultError       error
}

// UpdateStatus implements the CardService.UpdateStatus method
func (m *MockCardService) UpdateStatus(
	ctx context.Context,
	userID, cardID uuid.UUID,
	change service.StatusChange,
) (*domain.Card, error) {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, userID, cardID, change)
	}
	return m.Card, m.DefaultError
}

// UpdatePriority implements the CardService.UpdatePriority method
func (m *MockCardService) UpdatePriority(
	ctx context.Context,
	userID, cardID uuid.UUID,
	priority domain.Priority,
) (*domain.Card, error) {
	if m.UpdatePriorityFn != nil {
		return m.UpdatePriorityFn(ctx, userID, cardID, priority)
	}
	return m.Card, m.DefaultError
}

// TimeInStatus implements the CardService.TimeInStatus method
func (m *MockCardService) TimeInStatus(ctx context.Context, userID, cardID uuid.UUID) (lifecycle.TimeInStatus, error) {
	if m.TimeInStatusFn != nil {
		return m.TimeInStatusFn(ctx, userID, cardID)
	}
	return m.TimeInStatusResult, m.DefaultError
}

// Lineage implements the CardService.Lineage method
func (m *MockCardService) Lineage(ctx context.Context, userID, cardID uuid.UUID) ([]*domain.Card, error) {
	if m.LineageFn != nil {
		return m.LineageFn(ctx, userID, cardID)
	}
	return m.LineageResult, m.DefaultError
}

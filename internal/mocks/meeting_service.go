package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/service"
)

// MockMeetingService implements api.MeetingService for testing
type MockMeetingService struct {
	CreateMeetingFn      func(ctx context.Context, in service.CreateMeetingInput) (*service.CreateMeetingResult, error)
	GetMeetingFn         func(ctx context.Context, userID, meetingID uuid.UUID) (*domain.Meeting, error)
	ListCardsFn          func(ctx context.Context, userID, meetingID uuid.UUID) ([]*domain.Card, error)
	ListSeriesFn         func(ctx context.Context, userID uuid.UUID) ([]*domain.MeetingSeries, error)
	ListSeriesMeetingsFn func(ctx context.Context, userID, seriesID uuid.UUID) ([]*domain.Meeting, error)

	DefaultError error
}

// CreateMeeting implements the MeetingService.CreateMeeting method
func (m *MockMeetingService) CreateMeeting(
	ctx context.Context,
	in service.CreateMeetingInput,
) (*service.CreateMeetingResult, error) {
	if m.CreateMeetingFn != nil {
		return m.CreateMeetingFn(ctx, in)
	}
	return nil, m.DefaultError
}

// GetMeeting implements the MeetingService.GetMeeting method
func (m *MockMeetingService) GetMeeting(ctx context.Context, userID, meetingID uuid.UUID) (*domain.Meeting, error) {
	if m.GetMeetingFn != nil {
		return m.GetMeetingFn(ctx, userID, meetingID)
	}
	return nil, m.DefaultError
}

// ListCards implements the MeetingService.ListCards method
func (m *MockMeetingService) ListCards(ctx context.Context, userID, meetingID uuid.UUID) ([]*domain.Card, error) {
	if m.ListCardsFn != nil {
		return m.ListCardsFn(ctx, userID, meetingID)
	}
	return nil, m.DefaultError
}

// ListSeries implements the MeetingService.ListSeries method
func (m *MockMeetingService) ListSeries(ctx context.Context, userID uuid.UUID) ([]*domain.MeetingSeries, error) {
	if m.ListSeriesFn != nil {
		return m.ListSeriesFn(ctx, userID)
	}
	return nil, m.DefaultError
}

// ListSeriesMeetings implements the MeetingService.ListSeriesMeetings method
func (m *MockMeetingService) ListSeriesMeetings(
	ctx context.Context,
	userID, seriesID uuid.UUID,
) ([]*domain.Meeting, error) {
	if m.ListSeriesMeetingsFn != nil {
		return m.ListSeriesMeetingsFn(ctx, userID, seriesID)
	}
	return nil, m.DefaultError
}

// MockComparisonService implements api.ComparisonService for testing
type MockComparisonService struct {
	CompareFn func(ctx context.Context, userID, meetingID uuid.UUID) (*lifecycle.Comparison, error)

	Comparison   *lifecycle.Comparison
	DefaultError error
}

// Compare implements the ComparisonService.Compare method
func (m *MockComparisonService) Compare(
	ctx context.Context,
	userID, meetingID uuid.UUID,
) (*lifecycle.Comparison, error) {
	if m.CompareFn != nil {
		return m.CompareFn(ctx, userID, meetingID)
	}
	return m.Comparison, m.DefaultError
}

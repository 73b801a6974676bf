package api

import (
	"fmt"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/service"
)

// CreateMeetingRequest is the payload of POST /api/meetings.
type CreateMeetingRequest struct {
	Title string        `json:"title" validate:"required,max=500"`
	Date  time.Time     `json:"date"  validate:"required"`
	Cards []CardRequest `json:"cards" validate:"max=500,dive"`
}

// CardRequest is one proposed card of a new meeting. Status and priority
// are optional and default to ToDo and medium.
type CardRequest struct {
	Type           string     `json:"type"                      validate:"required,max=64"`
	Summary        string     `json:"summary"                   validate:"required,max=2000"`
	Owner          string     `json:"owner,omitempty"           validate:"max=200"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Context        string     `json:"context,omitempty"`
	InvolvedPeople []string   `json:"involved_people,omitempty" validate:"max=50,dive,max=200"`
	BlockedReason  string     `json:"blocked_reason,omitempty"`
	BlockedBy      string     `json:"blocked_by,omitempty"`
}

// toInput parses the card's status and priority names.
func (c CardRequest) toInput() (service.CardInput, error) {
	in := service.CardInput{
		Type:           c.Type,
		Summary:        c.Summary,
		Owner:          c.Owner,
		DueDate:        c.DueDate,
		Context:        c.Context,
		InvolvedPeople: c.InvolvedPeople,
		BlockedReason:  c.BlockedReason,
		BlockedBy:      c.BlockedBy,
	}
	if c.Status != "" {
		status, err := domain.ParseStatus(c.Status)
		if err != nil {
			return service.CardInput{}, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", c.Status), err)
		}
		in.Status = status
	}
	if c.Priority != "" {
		priority, err := domain.ParsePriority(c.Priority)
		if err != nil {
			return service.CardInput{}, domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", c.Priority), err)
		}
		in.Priority = priority
	}
	return in, nil
}

// UpdateStatusRequest is the payload of PATCH /api/cards/{id}/status.
type UpdateStatusRequest struct {
	Status        string `json:"status"                   validate:"required"`
	BlockedReason string `json:"blocked_reason,omitempty" validate:"max=1000"`
	BlockedBy     string `json:"blocked_by,omitempty"     validate:"max=200"`
}

// UpdatePriorityRequest is the payload of PATCH /api/cards/{id}/priority.
type UpdatePriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=low medium high urgent"`
}

// CreateMeetingResponse is the meeting as stored after linking and carryover.
type CreateMeetingResponse struct {
	Meeting     *domain.Meeting       `json:"meeting"`
	Series      *domain.MeetingSeries `json:"series,omitempty"`
	Cards       []*domain.Card        `json:"cards"`
	CarriedOver []*domain.Card        `json:"carried_over"`
}

// CardsResponse lists the cards of a meeting.
type CardsResponse struct {
	MeetingID string         `json:"meeting_id"`
	Cards     []*domain.Card `json:"cards"`
}

// TimeInStatusResponse is the display form of a card's time in its status.
type TimeInStatusResponse struct {
	CardID string `json:"card_id"`
	lifecycle.TimeInStatus
}

// LineageResponse lists a card's carryover chain from the card itself back
// to the card that introduced the item.
type LineageResponse struct {
	CardID  string         `json:"card_id"`
	Lineage []*domain.Card `json:"lineage"`
}

// SeriesListResponse lists a user's series.
type SeriesListResponse struct {
	Series []*domain.MeetingSeries `json:"series"`
}

// SeriesMeetingsResponse lists the meetings of a series in series order.
type SeriesMeetingsResponse struct {
	SeriesID string            `json:"series_id"`
	Meetings []*domain.Meeting `json:"meetings"`
}

// EscalationResponse summarizes one escalation run.
type EscalationResponse struct {
	Success   int       `json:"success"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Unchanged int       `json:"unchanged"`
	Scanned   int       `json:"scanned"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// NewEscalationResponse summarizes report.
func NewEscalationResponse(report *service.EscalationReport) EscalationResponse {
	return EscalationResponse{
		Success:   report.Success(),
		Failed:    report.Failed(),
		Skipped:   report.Skipped(),
		Unchanged: report.Unchanged,
		Scanned:   report.Scanned,
		StartedAt: report.StartedAt,
		Duration:  report.FinishedAt.Sub(report.StartedAt).String(),
	}
}

// nonNil keeps empty lists as [] in responses.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

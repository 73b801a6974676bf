package lifecycle

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// EligibleForCarryover reports whether card should follow the series into
// the next meeting.
func EligibleForCarryover(card *domain.Card) bool {
	return card != nil && !card.Status.IsTerminal()
}

// CarryForward clones src into the meeting newMeetingID. The clone keeps the
// lineage root of src, or predecessorMeetingID when src has none. Blocked
// details are copied only for blocked cards and low priorities are raised
// to the configured floor.
func CarryForward(
	src *domain.Card,
	newMeetingID, predecessorMeetingID uuid.UUID,
	now time.Time,
	params *Params,
) *domain.Card {
	sourceID := src.ID
	root := predecessorMeetingID
	if src.OriginalMeetingID != nil {
		root = *src.OriginalMeetingID
	}
	since := now

	priority := src.Priority
	if params.CarryoverPriorityFloor.HigherThan(priority) {
		priority = params.CarryoverPriorityFloor
	}

	card := &domain.Card{
		ID:                 uuid.New(),
		MeetingID:          newMeetingID,
		Type:               src.Type,
		Summary:            src.Summary,
		Owner:              src.Owner,
		Status:             src.Status,
		Priority:           priority,
		Context:            src.Context,
		InvolvedPeople:     slices.Clone(src.InvolvedPeople),
		CurrentStatusSince: &since,
		CarriedOver:        true,
		SourceCardID:       &sourceID,
		OriginalMeetingID:  &root,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if src.DueDate != nil {
		due := *src.DueDate
		card.DueDate = &due
	}

	if src.Status == domain.StatusBlocked {
		card.BlockedReason = src.BlockedReason
		card.BlockedBy = src.BlockedBy
		if src.BlockedSince != nil {
			blockedSince := *src.BlockedSince
			card.BlockedSince = &blockedSince
		}
	}

	return card
}

// PlanCarryover clones every eligible card of the predecessor meeting.
func PlanCarryover(
	predecessorCards []*domain.Card,
	newMeetingID, predecessorMeetingID uuid.UUID,
	now time.Time,
	params *Params,
) []*domain.Card {
	clones := make([]*domain.Card, 0, len(predecessorCards))
	for _, src := range predecessorCards {
		if !EligibleForCarryover(src) {
			continue
		}
		clones = append(clones, CarryForward(src, newMeetingID, predecessorMeetingID, now, params))
	}
	return clones
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarryoverCopiesUnresolvedCards(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	first := createMeeting(t, f, userID, "Weekly Team Sync - 1", fixtureStart,
		CardInput{Type: "action_item", Summary: "draft plan", Priority: domain.PriorityLow, InvolvedPeople: []string{"ana"}},
		CardInput{
			Type:          "action_item",
			Summary:       "vendor contract",
			Priority:      domain.PriorityHigh,
			Status:        domain.StatusBlocked,
			BlockedReason: "waiting on legal",
			BlockedBy:     "legal",
		},
		CardInput{Type: "decision", Summary: "pick vendor", Status: domain.StatusDone},
		CardInput{Type: "action_item", Summary: "migrate", Priority: domain.PriorityUrgent, Status: domain.StatusInProgress},
	)
	bySummary := make(map[string]*domain.Card)
	for _, c := range first.Cards {
		bySummary[c.Summary] = c
	}

	f.clock.Advance(7 * 24 * time.Hour)
	second := createMeeting(t, f, userID, "Weekly Team Sync - 2", fixtureStart.AddDate(0, 0, 7))

	require.Len(t, second.CarriedOver, 3)
	assert.Equal(t, 3, second.Meeting.CarryoverCount)
	assert.Equal(t, 3, f.db.meeting(second.Meeting.ID).CarryoverCount)

	carried := make(map[string]domain.Card)
	for _, c := range second.CarriedOver {
		carried[c.Summary] = f.db.card(c.ID)
	}
	assert.NotContains(t, carried, "pick vendor")

	draft := carried["draft plan"]
	assert.Equal(t, domain.PriorityMedium, draft.Priority, "low priority is raised to medium")
	assert.Equal(t, domain.StatusToDo, draft.Status)
	assert.Equal(t, []string{"ana"}, draft.InvolvedPeople)
	assert.Empty(t, draft.BlockedReason)

	blocked := carried["vendor contract"]
	assert.Equal(t, domain.PriorityHigh, blocked.Priority)
	assert.Equal(t, "waiting on legal", blocked.BlockedReason)
	assert.Equal(t, "legal", blocked.BlockedBy)
	require.NotNil(t, blocked.BlockedSince)

	migrate := carried["migrate"]
	assert.Equal(t, domain.PriorityUrgent, migrate.Priority)
	assert.Equal(t, domain.StatusInProgress, migrate.Status)

	for summary, c := range carried {
		source := bySummary[summary]
		assert.True(t, c.CarriedOver)
		require.NotNil(t, c.SourceCardID)
		assert.Equal(t, source.ID, *c.SourceCardID)
		require.NotNil(t, c.OriginalMeetingID)
		assert.Equal(t, first.Meeting.ID, *c.OriginalMeetingID)
		assert.Equal(t, second.Meeting.ID, c.MeetingID)

		activities := f.db.activitiesFor(c.ID)
		require.Len(t, activities, 1)
		assert.Equal(t, domain.ActivityCarryover, activities[0].Type)

		var meta domain.CarryoverMetadata
		require.NoError(t, json.Unmarshal(activities[0].Metadata, &meta))
		assert.Equal(t, source.ID, meta.SourceCardID)
		assert.Equal(t, first.Meeting.ID, meta.CarriedFromMeetingID)
	}

	assert.Contains(t, f.emitter.types(), events.TypeCardsCarriedOver)
}

func TestCarryoverPreservesLineageRootAcrossHops(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	first := createMeeting(t, f, userID, "Weekly Team Sync - 1", fixtureStart,
		CardInput{Type: "action_item", Summary: "hire designer"},
	)
	second := createMeeting(t, f, userID, "Weekly Team Sync - 2", fixtureStart.AddDate(0, 0, 7))
	third := createMeeting(t, f, userID, "Weekly Team Sync - 3", fixtureStart.AddDate(0, 0, 14))

	require.Len(t, second.CarriedOver, 1)
	require.Len(t, third.CarriedOver, 1)

	hop2 := third.CarriedOver[0]
	require.NotNil(t, hop2.OriginalMeetingID)
	assert.Equal(t, first.Meeting.ID, *hop2.OriginalMeetingID)
	assert.Equal(t, second.CarriedOver[0].ID, *hop2.SourceCardID)

	chain, err := f.cardSvc.Lineage(context.Background(), userID, hop2.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, hop2.ID, chain[0].ID)
	assert.Equal(t, second.CarriedOver[0].ID, chain[1].ID)
	assert.Equal(t, first.Cards[0].ID, chain[2].ID)
	assert.Nil(t, chain[2].SourceCardID)
}

func TestCarryoverFailureDoesNotFailMeetingCreation(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	createMeeting(t, f, userID, "Weekly Team Sync - 1", fixtureStart,
		CardInput{Type: "action_item", Summary: "open item"},
	)
	f.db.failOn("activities.CreateMultiple", errors.New("disk full"))

	second, err := f.meetingSvc.CreateMeeting(context.Background(), CreateMeetingInput{
		UserID: userID,
		Title:  "Weekly Team Sync - 2",
		Date:   fixtureStart.AddDate(0, 0, 7),
	})

	require.NoError(t, err)
	require.NotNil(t, second.Series, "linking still succeeded")
	assert.Empty(t, second.CarriedOver)
	assert.Equal(t, 0, second.Meeting.CarryoverCount)

	cards, err := f.cards.ListByMeeting(context.Background(), second.Meeting.ID)
	require.NoError(t, err)
	assert.Empty(t, cards, "carried cards were rolled back")
}

func TestCarryoverFromMissingPredecessor(t *testing.T) {
	f := newFixture(t)
	meeting, err := domain.NewMeeting(uuid.New(), "Weekly Team Sync - 9", fixtureStart, fixtureStart)
	require.NoError(t, err)
	f.db.putMeeting(meeting)

	carried, err := f.carryover.CarryOver(context.Background(), meeting.ID, uuid.New())

	require.NoError(t, err)
	assert.Empty(t, carried)
	assert.Equal(t, 0, f.db.meeting(meeting.ID).CarryoverCount)
	assert.Empty(t, f.emitter.types())
}

func TestCarryoverReportsStoreErrors(t *testing.T) {
	f := newFixture(t)
	f.db.failOn("cards.ListCarryoverCandidates", errors.New("timeout"))

	_, err := f.carryover.CarryOver(context.Background(), uuid.New(), uuid.New())

	require.Error(t, err)
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, carryoverComponent, serviceErr.Component)
}

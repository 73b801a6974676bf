package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarryForward(t *testing.T) {
	t.Parallel()

	params := NewDefaultParams()
	now := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()
	due := now.AddDate(0, 0, 3)
	blockedSince := now.AddDate(0, 0, -4)

	src := &domain.Card{
		ID:                uuid.New(),
		MeetingID:         second,
		Type:              "action_item",
		Summary:           "Renew certificates",
		Owner:             "Sam",
		Status:            domain.StatusBlocked,
		Priority:          domain.PriorityLow,
		DueDate:           &due,
		Context:           "expires end of month",
		InvolvedPeople:    []string{"Sam", "Ops"},
		OriginalMeetingID: &first,
		BlockedSince:      &blockedSince,
		BlockedReason:     "waiting on security",
		BlockedBy:         "Security",
		TimeInBlocked:     96,
	}

	clone := CarryForward(src, third, second, now, params)

	assert.NotEqual(t, src.ID, clone.ID)
	assert.Equal(t, third, clone.MeetingID)
	assert.Equal(t, src.Summary, clone.Summary)
	assert.Equal(t, src.Owner, clone.Owner)
	assert.Equal(t, src.Context, clone.Context)
	assert.Equal(t, domain.StatusBlocked, clone.Status)
	assert.Equal(t, domain.PriorityMedium, clone.Priority)
	assert.True(t, clone.CarriedOver)
	require.NotNil(t, clone.SourceCardID)
	assert.Equal(t, src.ID, *clone.SourceCardID)
	require.NotNil(t, clone.OriginalMeetingID)
	assert.Equal(t, first, *clone.OriginalMeetingID)
	assert.Equal(t, "waiting on security", clone.BlockedReason)
	assert.Equal(t, "Security", clone.BlockedBy)
	require.NotNil(t, clone.BlockedSince)
	assert.Equal(t, blockedSince, *clone.BlockedSince)
	assert.Equal(t, now, *clone.CurrentStatusSince)
	assert.Zero(t, clone.TimeInBlocked)
	require.NoError(t, clone.Validate())

	clone.InvolvedPeople[0] = "changed"
	assert.Equal(t, "Sam", src.InvolvedPeople[0])
}

func TestCarryForwardDropsBlockedFieldsWhenNotBlocked(t *testing.T) {
	t.Parallel()

	src := &domain.Card{
		ID:            uuid.New(),
		Summary:       "Write migration",
		Status:        domain.StatusInProgress,
		Priority:      domain.PriorityHigh,
		BlockedReason: "stale",
		BlockedBy:     "stale",
	}
	prev := uuid.New()

	clone := CarryForward(src, uuid.New(), prev, time.Now(), NewDefaultParams())
	assert.Empty(t, clone.BlockedReason)
	assert.Empty(t, clone.BlockedBy)
	assert.Nil(t, clone.BlockedSince)
	assert.Equal(t, domain.PriorityHigh, clone.Priority)
	require.NotNil(t, clone.OriginalMeetingID)
	assert.Equal(t, prev, *clone.OriginalMeetingID)
}

func TestCarryForwardPreservesRootAcrossHops(t *testing.T) {
	t.Parallel()

	params := NewDefaultParams()
	now := time.Now()
	m1, m2, m3 := uuid.New(), uuid.New(), uuid.New()

	original, err := domain.NewCard(m1, "action_item", "Hire designer", now)
	require.NoError(t, err)
	original.OriginalMeetingID = nil

	hop1 := CarryForward(original, m2, m1, now, params)
	hop2 := CarryForward(hop1, m3, m2, now, params)

	assert.Equal(t, m1, *hop1.OriginalMeetingID)
	assert.Equal(t, m1, *hop2.OriginalMeetingID)
	assert.Equal(t, hop1.ID, *hop2.SourceCardID)
}

func TestPlanCarryover(t *testing.T) {
	t.Parallel()

	prev := uuid.New()
	cards := []*domain.Card{
		{ID: uuid.New(), Summary: "a", Status: domain.StatusDone, Priority: domain.PriorityLow},
		{ID: uuid.New(), Summary: "b", Status: domain.StatusToDo, Priority: domain.PriorityLow},
		{ID: uuid.New(), Summary: "c", Status: domain.StatusBlocked, Priority: domain.PriorityUrgent},
		nil,
	}

	clones := PlanCarryover(cards, uuid.New(), prev, time.Now(), NewDefaultParams())
	require.Len(t, clones, 2)
	assert.Equal(t, "b", clones[0].Summary)
	assert.Equal(t, domain.PriorityMedium, clones[0].Priority)
	assert.Equal(t, "c", clones[1].Summary)
	assert.Equal(t, domain.PriorityUrgent, clones[1].Priority)

	assert.Empty(t, PlanCarryover(nil, uuid.New(), prev, time.Now(), NewDefaultParams()))
}

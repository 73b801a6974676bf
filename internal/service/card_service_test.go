package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCardFixture creates one meeting with one ToDo card owned by userID.
func newCardFixture(t *testing.T) (*fixture, uuid.UUID, *domain.Card) {
	t.Helper()
	f := newFixture(t)
	userID := uuid.New()
	result := createMeeting(t, f, userID, "Design review", fixtureStart,
		CardInput{Type: "action_item", Summary: "write proposal", Priority: domain.PriorityLow},
	)
	return f, userID, result.Cards[0]
}

func statusChanges(t *testing.T, f *fixture, cardID uuid.UUID) []domain.StatusChangeMetadata {
	t.Helper()
	var out []domain.StatusChangeMetadata
	for _, a := range f.db.activitiesFor(cardID) {
		if a.Type != domain.ActivityStatusChange {
			continue
		}
		var meta domain.StatusChangeMetadata
		require.NoError(t, json.Unmarshal(a.Metadata, &meta))
		out = append(out, meta)
	}
	return out
}

func TestUpdateStatusAccumulatesTimeInStatus(t *testing.T) {
	f, userID, card := newCardFixture(t)
	ctx := context.Background()

	f.clock.Advance(5 * time.Hour)
	updated, err := f.cardSvc.UpdateStatus(ctx, userID, card.ID, StatusChange{Status: domain.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.InDelta(t, 5.0, updated.TimeInToDo, 0.001)
	require.NotNil(t, updated.CurrentStatusSince)
	assert.Equal(t, f.clock.Now(), *updated.CurrentStatusSince)

	f.clock.Advance(2 * time.Hour)
	updated, err = f.cardSvc.UpdateStatus(ctx, userID, card.ID, StatusChange{
		Status:        domain.StatusBlocked,
		BlockedReason: "needs budget approval",
		BlockedBy:     "finance",
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, updated.TimeInProgress, 0.001)
	assert.Equal(t, "needs budget approval", updated.BlockedReason)
	assert.Equal(t, "finance", updated.BlockedBy)
	require.NotNil(t, updated.BlockedSince)

	f.clock.Advance(24 * time.Hour)
	updated, err = f.cardSvc.UpdateStatus(ctx, userID, card.ID, StatusChange{Status: domain.StatusDone})
	require.NoError(t, err)
	assert.InDelta(t, 24.0, updated.TimeInBlocked, 0.001)
	assert.Empty(t, updated.BlockedReason)
	assert.Empty(t, updated.BlockedBy)
	assert.Nil(t, updated.BlockedSince)

	stored := f.db.card(card.ID)
	assert.Equal(t, domain.StatusDone, stored.Status)
	assert.InDelta(t, 5.0, stored.TimeInToDo, 0.001)

	changes := statusChanges(t, f, card.ID)
	require.Len(t, changes, 3)
	assert.Equal(t, domain.StatusToDo, changes[0].OldStatus)
	assert.Equal(t, domain.StatusInProgress, changes[0].NewStatus)
	assert.InDelta(t, 5.0, changes[0].HoursInStatus, 0.001)
	assert.Equal(t, "needs budget approval", changes[1].BlockedReason)
	assert.Equal(t, domain.StatusDone, changes[2].NewStatus)
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	f, userID, card := newCardFixture(t)
	f.clock.Advance(time.Hour)

	updated, err := f.cardSvc.UpdateStatus(context.Background(), userID, card.ID, StatusChange{Status: domain.StatusToDo})

	require.NoError(t, err)
	assert.Equal(t, card.CurrentStatusSince, updated.CurrentStatusSince)
	assert.Zero(t, updated.TimeInToDo)
	assert.Empty(t, statusChanges(t, f, card.ID))
}

func TestUpdateStatusErrors(t *testing.T) {
	f, userID, card := newCardFixture(t)

	tests := []struct {
		name     string
		userID   uuid.UUID
		cardID   uuid.UUID
		status   domain.Status
		expected error
	}{
		{"unknown status", userID, card.ID, "Archived", domain.ErrInvalidStatus},
		{"unknown card", userID, uuid.New(), domain.StatusDone, ErrCardNotFound},
		{"other user's card", uuid.New(), card.ID, domain.StatusDone, ErrNotOwned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.cardSvc.UpdateStatus(context.Background(), tt.userID, tt.cardID, StatusChange{Status: tt.status})
			assert.ErrorIs(t, err, tt.expected)
		})
	}
	assert.Equal(t, domain.StatusToDo, f.db.card(card.ID).Status)
}

func TestUpdatePriorityIsManual(t *testing.T) {
	f, userID, card := newCardFixture(t)
	ctx := context.Background()

	// Let the escalator touch the card first.
	f.clock.Advance(4 * day)
	report := f.escalator.Run(ctx)
	require.Equal(t, 1, report.Success())
	require.True(t, f.db.card(card.ID).PriorityAutoUpdated)

	f.clock.Advance(time.Hour)
	updated, err := f.cardSvc.UpdatePriority(ctx, userID, card.ID, domain.PriorityLow)
	require.NoError(t, err)

	assert.Equal(t, domain.PriorityLow, updated.Priority)
	assert.False(t, updated.PriorityAutoUpdated)
	require.NotNil(t, updated.LastPriorityUpdate)
	assert.Equal(t, f.clock.Now(), *updated.LastPriorityUpdate)

	var manual []domain.PriorityChangeMetadata
	for _, a := range f.db.activitiesFor(card.ID) {
		if a.Type != domain.ActivityPriorityChange {
			continue
		}
		var meta domain.PriorityChangeMetadata
		require.NoError(t, json.Unmarshal(a.Metadata, &meta))
		if !meta.Automated {
			manual = append(manual, meta)
		}
	}
	require.Len(t, manual, 1)
	assert.Equal(t, domain.PriorityMedium, manual[0].OldPriority)
	assert.Equal(t, domain.PriorityLow, manual[0].NewPriority)

	_, err = f.cardSvc.UpdatePriority(ctx, userID, card.ID, domain.Priority(9))
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}

func TestTimeInStatus(t *testing.T) {
	f, userID, card := newCardFixture(t)

	tests := []struct {
		advance time.Duration
		display string
		urgency lifecycle.UrgencyLevel
	}{
		{20 * time.Minute, "20m", lifecycle.UrgencyFresh},
		{3 * time.Hour, "3h", lifecycle.UrgencyFresh},
		{day, "1 day", lifecycle.UrgencyAging},
		{2 * day, "3 days", lifecycle.UrgencyStale},
		{3 * day, "6 days", lifecycle.UrgencyCritical},
	}

	// Each row advances the clock further; the card never leaves ToDo.
	for _, tt := range tests {
		f.clock.Advance(tt.advance)
		t.Run(tt.display, func(t *testing.T) {
			got, err := f.cardSvc.TimeInStatus(context.Background(), userID, card.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.display, got.Display)
			assert.Equal(t, tt.urgency, got.Urgency)
			assert.Equal(t, tt.urgency == lifecycle.UrgencyStale || tt.urgency == lifecycle.UrgencyCritical, got.IsStale)
		})
	}
}

func TestLineageOfOriginalCard(t *testing.T) {
	f, userID, card := newCardFixture(t)

	chain, err := f.cardSvc.Lineage(context.Background(), userID, card.ID)

	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, card.ID, chain[0].ID)
}

func TestLineageStopsAtDeletedAncestor(t *testing.T) {
	f, userID, card := newCardFixture(t)
	missing := uuid.New()
	orphan := *copyCard(f.db.card(card.ID))
	orphan.ID = uuid.New()
	orphan.CarriedOver = true
	orphan.SourceCardID = &missing
	f.db.putCard(&orphan)

	chain, err := f.cardSvc.Lineage(context.Background(), userID, orphan.ID)

	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, orphan.ID, chain[0].ID)
}

func TestNewCardServiceRequiresDependencies(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		build func() (*CardService, error)
	}{
		{"nil transactor", func() (*CardService, error) {
			return NewCardService(nil, f.cards, f.meetings, f.activity, nil, nil, nil)
		}},
		{"nil card store", func() (*CardService, error) {
			return NewCardService(f.db, nil, f.meetings, f.activity, nil, nil, nil)
		}},
		{"nil meeting store", func() (*CardService, error) {
			return NewCardService(f.db, f.cards, nil, f.activity, nil, nil, nil)
		}},
		{"nil activity store", func() (*CardService, error) {
			return NewCardService(f.db, f.cards, f.meetings, nil, nil, nil, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.build()
			assert.Nil(t, svc)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	svc, err := NewCardService(f.db, f.cards, f.meetings, f.activity, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestUpdateStatusRefreshesSeriesAggregates(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	result := createMeeting(t, f, userID, "Weekly Team Sync - 1", fixtureStart,
		CardInput{Type: "action_item", Summary: "draft agenda"},
		CardInput{Type: "action_item", Summary: "invite guests"},
	)
	require.NotNil(t, result.Series)
	assert.Zero(t, result.Series.AvgCompletionRate)

	f.clock.Advance(time.Hour)
	_, err := f.cardSvc.UpdateStatus(context.Background(), userID, result.Cards[0].ID,
		StatusChange{Status: domain.StatusDone})
	require.NoError(t, err)

	series, err := f.series.GetByID(context.Background(), result.Series.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, series.AvgCompletionRate, 0.001)
	assert.InDelta(t, 2.0, series.AvgItemsPerMeeting, 0.001)
}

func TestUpdateStatusSucceedsWhenSeriesRefreshFails(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	result := createMeeting(t, f, userID, "Weekly Team Sync - 1", fixtureStart,
		CardInput{Type: "action_item", Summary: "draft agenda"},
	)
	require.NotNil(t, result.Series)
	f.db.restore(func() memSnapshot {
		snap := f.db.snapshot()
		delete(snap.series, result.Series.ID)
		return snap
	}())

	updated, err := f.cardSvc.UpdateStatus(context.Background(), userID, result.Cards[0].ID,
		StatusChange{Status: domain.StatusDone})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, updated.Status)
	assert.Equal(t, domain.StatusDone, f.db.card(result.Cards[0].ID).Status)
}

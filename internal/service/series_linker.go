package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/redact"
	"github.com/phrazzld/cadence-api/internal/store"
)

const seriesLinkerComponent = "series_linker"

// LinkResult describes a meeting after it joined a series.
type LinkResult struct {
	Series      *domain.MeetingSeries
	Meeting     *domain.Meeting
	Predecessor *domain.Meeting
}

// SeriesLinker attaches recurring meetings to their per-user series.
type SeriesLinker struct {
	tx       store.Transactor
	series   store.SeriesStore
	meetings store.MeetingStore
	logger   *slog.Logger
	opts     options
}

// NewSeriesLinker creates a SeriesLinker.
// It returns an error if any of the required dependencies are nil.
func NewSeriesLinker(
	tx store.Transactor,
	seriesStore store.SeriesStore,
	meetingStore store.MeetingStore,
	logger *slog.Logger,
	opts ...Option,
) (*SeriesLinker, error) {
	if tx == nil {
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrValidation)
	}
	if seriesStore == nil {
		return nil, domain.NewValidationError("seriesStore", "cannot be nil", domain.ErrValidation)
	}
	if meetingStore == nil {
		return nil, domain.NewValidationError("meetingStore", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SeriesLinker{
		tx:       tx,
		series:   seriesStore,
		meetings: meetingStore,
		logger:   logger.With(slog.String("component", seriesLinkerComponent)),
		opts:     buildOptions(opts),
	}, nil
}

// Link attaches meeting to the series named by detection. The series is
// created on first use. Within one transaction the meeting receives the
// next series number and a back link to its predecessor, the predecessor
// receives the forward link, and the series aggregates are recomputed.
// meeting is updated in place on success.
func (l *SeriesLinker) Link(
	ctx context.Context,
	meeting *domain.Meeting,
	detection lifecycle.Detection,
) (*LinkResult, error) {
	log := logger.FromContextOrDefault(ctx, l.logger).With(
		slog.String("meeting_id", meeting.ID.String()),
	)

	if !detection.IsRecurring {
		return nil, NewServiceError(seriesLinkerComponent, "link", "cannot link meeting", ErrNotRecurring)
	}

	series, err := l.findOrCreateSeries(ctx, meeting.UserID, detection)
	if err != nil {
		return nil, NewServiceError(seriesLinkerComponent, "link", "failed to resolve series", err)
	}

	now := l.opts.now()
	var result *LinkResult

	err = l.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txSeries := l.series.WithTx(tx)
		txMeetings := l.meetings.WithTx(tx)

		// Serializes concurrent links into the same series so numbers stay contiguous.
		locked, err := txSeries.GetByIDForUpdate(ctx, series.ID)
		if err != nil {
			return err
		}

		predecessor, err := txMeetings.FindLatestInSeries(ctx, locked.ID, meeting.ID)
		if err != nil && !store.IsNotFoundError(err) {
			return err
		}

		link := store.SeriesLink{
			SeriesID:         locked.ID,
			SeriesNumber:     1,
			Recurrence:       detection.Recurrence,
			ExpectedNextDate: detection.Recurrence.Next(now),
		}
		if predecessor != nil {
			link.SeriesNumber = seriesNumber(predecessor) + 1
			predecessorID := predecessor.ID
			link.PreviousMeetingID = &predecessorID
		}

		if err := txMeetings.AttachToSeries(ctx, meeting.ID, link); err != nil {
			return err
		}
		if predecessor != nil {
			if err := txMeetings.SetNextMeeting(ctx, predecessor.ID, meeting.ID); err != nil {
				return err
			}
		}

		if err := recomputeAggregates(ctx, txSeries, txMeetings, locked, now); err != nil {
			return err
		}

		applyLink(meeting, link, now)
		if predecessor != nil {
			meetingID := meeting.ID
			predecessor.NextMeetingID = &meetingID
		}
		result = &LinkResult{Series: locked, Meeting: meeting, Predecessor: predecessor}
		return nil
	})
	if err != nil {
		log.Error("failed to link meeting to series",
			slog.String("series_id", series.ID.String()),
			redact.ErrorAttr(err))
		return nil, NewServiceError(seriesLinkerComponent, "link", "failed to link meeting", err)
	}

	log.Info("meeting linked to series",
		slog.String("series_id", result.Series.ID.String()),
		slog.Int("series_number", *meeting.SeriesNumber),
		slog.Int("total_meetings", result.Series.TotalMeetings))

	l.opts.emit(ctx, log, events.TypeSeriesLinked, events.SeriesLinkedPayload{
		MeetingID:         meeting.ID,
		SeriesID:          result.Series.ID,
		SeriesNumber:      *meeting.SeriesNumber,
		PreviousMeetingID: meeting.PreviousMeetingID,
	})

	return result, nil
}

// RefreshAggregates recomputes a series' totals and averages from all of its
// meetings. Card counts change after the meeting was linked, when carryover
// adds cards or a card is completed, so callers refresh after those writes.
func (l *SeriesLinker) RefreshAggregates(ctx context.Context, seriesID uuid.UUID) (*domain.MeetingSeries, error) {
	now := l.opts.now()

	var series *domain.MeetingSeries
	err := l.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txSeries := l.series.WithTx(tx)

		locked, err := txSeries.GetByIDForUpdate(ctx, seriesID)
		if err != nil {
			return err
		}
		if err := recomputeAggregates(ctx, txSeries, l.meetings.WithTx(tx), locked, now); err != nil {
			return err
		}
		series = locked
		return nil
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewServiceError(seriesLinkerComponent, "refresh_aggregates", "series lookup", ErrSeriesNotFound)
		}
		return nil, NewServiceError(seriesLinkerComponent, "refresh_aggregates", "failed to refresh aggregates", err)
	}

	logger.FromContextOrDefault(ctx, l.logger).Debug("series aggregates refreshed",
		slog.String("series_id", seriesID.String()),
		slog.Float64("avg_completion_rate", series.AvgCompletionRate),
		slog.Float64("avg_items_per_meeting", series.AvgItemsPerMeeting))
	return series, nil
}

// recomputeAggregates rebuilds the series aggregates from the per-meeting
// tallies. series must be locked by the surrounding transaction.
func recomputeAggregates(
	ctx context.Context,
	txSeries store.SeriesStore,
	txMeetings store.MeetingStore,
	series *domain.MeetingSeries,
	now time.Time,
) error {
	tallies, err := txMeetings.SeriesTallies(ctx, series.ID)
	if err != nil {
		return err
	}
	lifecycle.ComputeSeriesAggregates(tallies, series.Recurrence).Apply(series, now)
	return txSeries.UpdateAggregates(ctx, series)
}

// findOrCreateSeries returns the user's active series for the detected title.
// Two meetings of a new series can race to create it; the loser of the
// unique constraint reads the winner's row.
func (l *SeriesLinker) findOrCreateSeries(
	ctx context.Context,
	userID uuid.UUID,
	detection lifecycle.Detection,
) (*domain.MeetingSeries, error) {
	log := logger.FromContextOrDefault(ctx, l.logger)

	series, err := l.series.FindActive(ctx, userID, detection.SeriesTitle)
	if err == nil {
		return series, nil
	}
	if !store.IsNotFoundError(err) {
		return nil, err
	}

	series, err = domain.NewMeetingSeries(userID, detection.SeriesTitle, detection.Recurrence, l.opts.now())
	if err != nil {
		return nil, err
	}

	err = l.series.Create(ctx, series)
	switch {
	case err == nil:
		log.Info("created meeting series",
			slog.String("series_id", series.ID.String()),
			slog.String("recurrence", string(series.Recurrence)))
		return series, nil
	case errors.Is(err, store.ErrSeriesExists):
		log.Debug("series created concurrently, reading existing row",
			slog.String("title", detection.SeriesTitle))
		return l.series.FindActive(ctx, userID, detection.SeriesTitle)
	default:
		return nil, err
	}
}

func seriesNumber(m *domain.Meeting) int {
	if m.SeriesNumber == nil {
		return 0
	}
	return *m.SeriesNumber
}

func applyLink(m *domain.Meeting, link store.SeriesLink, now time.Time) {
	seriesID := link.SeriesID
	number := link.SeriesNumber
	next := link.ExpectedNextDate

	m.SeriesID = &seriesID
	m.SeriesNumber = &number
	m.IsRecurring = true
	m.Recurrence = link.Recurrence
	m.PreviousMeetingID = link.PreviousMeetingID
	m.ExpectedNextDate = &next
	m.UpdatedAt = now
}

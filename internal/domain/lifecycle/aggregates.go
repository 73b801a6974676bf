package lifecycle

import (
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
)

// SeriesAggregates are the derived statistics of a meeting series.
type SeriesAggregates struct {
	TotalMeetings      int
	AvgCompletionRate  float64
	AvgItemsPerMeeting float64
	LastMeetingDate    *time.Time
	NextMeetingDate    *time.Time
}

// CompletionRate returns done/total as a percentage, or 0 for an empty meeting.
func CompletionRate(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

// ComputeSeriesAggregates recomputes the aggregates from every meeting in
// the series. Meetings without cards count as 0% complete.
func ComputeSeriesAggregates(tallies []domain.MeetingTally, recurrence domain.Recurrence) SeriesAggregates {
	agg := SeriesAggregates{TotalMeetings: len(tallies)}
	if len(tallies) == 0 {
		return agg
	}

	var rateSum, itemSum float64
	var last time.Time
	for _, t := range tallies {
		rateSum += CompletionRate(t.DoneCards, t.TotalCards)
		itemSum += float64(t.TotalCards)
		if t.Date.After(last) {
			last = t.Date
		}
	}

	n := float64(len(tallies))
	agg.AvgCompletionRate = rateSum / n
	agg.AvgItemsPerMeeting = itemSum / n

	next := recurrence.Next(last)
	agg.LastMeetingDate = &last
	agg.NextMeetingDate = &next
	return agg
}

// Apply copies the aggregates onto series.
func (a SeriesAggregates) Apply(series *domain.MeetingSeries, now time.Time) {
	series.TotalMeetings = a.TotalMeetings
	series.AvgCompletionRate = a.AvgCompletionRate
	series.AvgItemsPerMeeting = a.AvgItemsPerMeeting
	series.LastMeetingDate = a.LastMeetingDate
	series.NextMeetingDate = a.NextMeetingDate
	series.UpdatedAt = now
}

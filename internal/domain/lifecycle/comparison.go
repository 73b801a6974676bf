package lifecycle

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// MeetingSnapshot is a meeting together with its cards.
type MeetingSnapshot struct {
	Meeting *domain.Meeting
	Cards   []*domain.Card
}

// MeetingStats summarizes one side of a comparison.
type MeetingStats struct {
	MeetingID      uuid.UUID `json:"meeting_id"`
	Title          string    `json:"title"`
	Date           time.Time `json:"date"`
	TotalCards     int       `json:"total_cards"`
	DoneCards      int       `json:"done_cards"`
	BlockedCards   int       `json:"blocked_cards"`
	CompletionRate float64   `json:"completion_rate"`
}

// Comparison is the structured diff between a meeting and its predecessor.
type Comparison struct {
	Current              MeetingStats `json:"current"`
	Previous             MeetingStats `json:"previous"`
	CompletionRateChange float64      `json:"completion_rate_change"`
	CarriedOver          int          `json:"carried_over"`
	NewItems             int          `json:"new_items"`
	StillBlocked         int          `json:"still_blocked"`
	DaysBetween          int          `json:"days_between"`
	NewPeople            []string     `json:"new_people"`
	RemovedPeople        []string     `json:"removed_people"`
	Insights             []string     `json:"insights"`
}

// Compare diffs current against previous and derives the insights.
func Compare(current, previous MeetingSnapshot, params *Params) *Comparison {
	c := &Comparison{
		Current:  stats(current),
		Previous: stats(previous),
	}
	c.CompletionRateChange = c.Current.CompletionRate - c.Previous.CompletionRate

	previousBlocked := make(map[uuid.UUID]struct{})
	for _, card := range previous.Cards {
		if card.Status == domain.StatusBlocked {
			previousBlocked[card.ID] = struct{}{}
		}
	}

	for _, card := range current.Cards {
		if !card.CarriedOver {
			continue
		}
		c.CarriedOver++
		if card.SourceCardID == nil {
			continue
		}
		if _, ok := previousBlocked[*card.SourceCardID]; ok {
			c.StillBlocked++
		}
	}
	c.NewItems = c.Current.TotalCards - c.CarriedOver

	gap := current.Meeting.Date.Sub(previous.Meeting.Date)
	c.DaysBetween = int(math.Abs(gap.Hours()) / 24)

	currentPeople := people(current.Cards)
	previousPeople := people(previous.Cards)
	c.NewPeople = difference(currentPeople, previousPeople)
	c.RemovedPeople = difference(previousPeople, currentPeople)

	c.Insights = insights(c, params)
	return c
}

func insights(c *Comparison, params *Params) []string {
	var out []string

	if c.CompletionRateChange > params.SignificantRateChange {
		out = append(out, fmt.Sprintf(
			"Completion rate improved by %.0f%% since the last meeting.", c.CompletionRateChange))
	}
	if c.CompletionRateChange < -params.SignificantRateChange {
		out = append(out, fmt.Sprintf(
			"Completion rate dropped by %.0f%% since the last meeting.", math.Abs(c.CompletionRateChange)))
	}
	if c.CarriedOver > params.BusyCarryoverCount {
		out = append(out, fmt.Sprintf(
			"%d items were carried over. Consider reviewing priorities.", c.CarriedOver))
	}
	if c.StillBlocked > 0 {
		out = append(out, fmt.Sprintf(
			"%d items are still blocked from the last meeting and may need escalation.", c.StillBlocked))
	}
	if c.DaysBetween > params.LongGapDays {
		out = append(out, fmt.Sprintf(
			"%d days passed since the last meeting, longer than usual.", c.DaysBetween))
	}

	if len(out) == 0 {
		out = append(out, "Steady progress since the last meeting.")
	}
	return out
}

func stats(s MeetingSnapshot) MeetingStats {
	st := MeetingStats{
		MeetingID:  s.Meeting.ID,
		Title:      s.Meeting.Title,
		Date:       s.Meeting.Date,
		TotalCards: len(s.Cards),
	}
	for _, card := range s.Cards {
		switch card.Status {
		case domain.StatusDone:
			st.DoneCards++
		case domain.StatusBlocked:
			st.BlockedCards++
		}
	}
	st.CompletionRate = CompletionRate(st.DoneCards, st.TotalCards)
	return st
}

func people(cards []*domain.Card) map[string]struct{} {
	set := make(map[string]struct{})
	for _, card := range cards {
		for _, p := range card.InvolvedPeople {
			if p != "" {
				set[p] = struct{}{}
			}
		}
	}
	return set
}

func difference(a, b map[string]struct{}) []string {
	out := make([]string, 0)
	for p := range a {
		if _, ok := b[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

package lifecycle

import (
	"fmt"
	"time"
)

// UrgencyLevel classifies how long a card has been sitting in its status.
type UrgencyLevel string

const (
	UrgencyFresh    UrgencyLevel = "fresh"
	UrgencyAging    UrgencyLevel = "aging"
	UrgencyStale    UrgencyLevel = "stale"
	UrgencyCritical UrgencyLevel = "critical"
)

// TimeInStatus is the elapsed time since a card entered its current status.
// Days, Hours and Minutes are each whole, truncated totals (Hours is not the
// remainder after Days).
type TimeInStatus struct {
	Days    int          `json:"days"`
	Hours   int          `json:"hours"`
	Minutes int          `json:"minutes"`
	Display string       `json:"display"`
	Urgency UrgencyLevel `json:"urgency"`
	IsStale bool         `json:"is_stale"`
}

// ComputeTimeInStatus classifies the time elapsed between since and now.
// A nil since means the card has no recorded transition yet and is fresh.
func ComputeTimeInStatus(since *time.Time, now time.Time, params *Params) TimeInStatus {
	if since == nil {
		return TimeInStatus{Display: "Just now", Urgency: UrgencyFresh}
	}

	elapsed := now.Sub(*since)
	if elapsed < 0 {
		elapsed = 0
	}

	t := TimeInStatus{
		Days:    int(elapsed / (24 * time.Hour)),
		Hours:   int(elapsed / time.Hour),
		Minutes: int(elapsed / time.Minute),
	}

	switch {
	case t.Days >= params.CriticalAfterDays:
		t.Urgency = UrgencyCritical
	case t.Days >= params.StaleAfterDays:
		t.Urgency = UrgencyStale
	case t.Days >= params.AgingAfterDays:
		t.Urgency = UrgencyAging
	default:
		t.Urgency = UrgencyFresh
	}
	t.IsStale = t.Urgency == UrgencyStale || t.Urgency == UrgencyCritical

	switch {
	case t.Days == 0 && t.Hours < 1:
		t.Display = fmt.Sprintf("%dm", t.Minutes)
	case t.Days == 0:
		t.Display = fmt.Sprintf("%dh", t.Hours)
	case t.Days == 1:
		t.Display = "1 day"
	default:
		t.Display = fmt.Sprintf("%d days", t.Days)
	}

	return t
}

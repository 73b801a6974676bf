package lifecycle

import (
	"fmt"
	"sort"

	"github.com/phrazzld/cadence-api/internal/domain"
)

// Threshold raises a card to Target once it has spent at least Days whole
// days in its current status.
type Threshold struct {
	Days   int
	Target domain.Priority
}

// Params defines all configurable parameters for the lifecycle policies.
type Params struct {
	// Escalation holds the thresholds per status, highest target first.
	Escalation map[domain.Status][]Threshold

	// Urgency bands for StatusDurationTracker, in whole days.
	AgingAfterDays    int
	StaleAfterDays    int
	CriticalAfterDays int

	// CarryoverPriorityFloor is the minimum priority of a carried card.
	CarryoverPriorityFloor domain.Priority

	// Comparison insight thresholds.
	SignificantRateChange float64
	BusyCarryoverCount    int
	LongGapDays           int
}

// ParamsConfig allows overriding the escalation table when creating a new
// Params instance. Missing statuses keep their defaults.
type ParamsConfig struct {
	Escalation map[domain.Status]map[domain.Priority]int
}

// NewDefaultParams creates a new Params instance with default values.
func NewDefaultParams() *Params {
	return &Params{
		Escalation: map[domain.Status][]Threshold{
			domain.StatusBlocked: {
				{Days: 2, Target: domain.PriorityUrgent},
				{Days: 1, Target: domain.PriorityHigh},
			},
			domain.StatusInProgress: {
				{Days: 7, Target: domain.PriorityUrgent},
				{Days: 5, Target: domain.PriorityHigh},
			},
			domain.StatusToDo: {
				{Days: 10, Target: domain.PriorityUrgent},
				{Days: 7, Target: domain.PriorityHigh},
				{Days: 4, Target: domain.PriorityMedium},
			},
		},

		AgingAfterDays:    1,
		StaleAfterDays:    3,
		CriticalAfterDays: 6,

		CarryoverPriorityFloor: domain.PriorityMedium,

		SignificantRateChange: 10,
		BusyCarryoverCount:    5,
		LongGapDays:           10,
	}
}

// NewParams creates a Params instance from the defaults with the escalation
// overrides in cfg applied. An override replaces the whole row for its status.
func NewParams(cfg ParamsConfig) (*Params, error) {
	params := NewDefaultParams()

	for status, row := range cfg.Escalation {
		if !status.Valid() {
			return nil, domain.NewValidationError("escalation", "unknown status "+string(status), domain.ErrInvalidStatus)
		}
		if status == domain.StatusDone {
			return nil, domain.NewValidationError("escalation", "done cards never escalate", nil)
		}

		thresholds := make([]Threshold, 0, len(row))
		for target, days := range row {
			if !target.Valid() {
				return nil, domain.NewValidationError("escalation", "unknown target priority", domain.ErrInvalidPriority)
			}
			if days < 0 {
				return nil, domain.NewValidationError(
					"escalation",
					fmt.Sprintf("%s threshold for %s must not be negative", target, status.Label()),
					nil,
				)
			}
			thresholds = append(thresholds, Threshold{Days: days, Target: target})
		}
		sort.Slice(thresholds, func(i, j int) bool {
			return thresholds[i].Target > thresholds[j].Target
		})
		params.Escalation[status] = thresholds
	}

	return params, nil
}

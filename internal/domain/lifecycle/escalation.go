package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
)

// Escalation is a priority raise decided for one card. From and Status are
// the values the decision was based on; writers must check they still hold.
type Escalation struct {
	CardID uuid.UUID
	From   domain.Priority
	To     domain.Priority
	Status domain.Status
	Days   int
	Reason string
}

// EvaluateEscalation applies the escalation table to card at now. It returns
// false when no rule fires. Done cards never escalate and the returned target
// is always strictly higher than the card's current priority.
func EvaluateEscalation(card *domain.Card, now time.Time, params *Params) (Escalation, bool) {
	if card == nil || card.Status.IsTerminal() {
		return Escalation{}, false
	}

	elapsed := ComputeTimeInStatus(card.CurrentStatusSince, now, params)

	for _, rule := range params.Escalation[card.Status] {
		if elapsed.Days < rule.Days || !rule.Target.HigherThan(card.Priority) {
			continue
		}
		return Escalation{
			CardID: card.ID,
			From:   card.Priority,
			To:     rule.Target,
			Status: card.Status,
			Days:   elapsed.Days,
			Reason: EscalationReason(card.Status, elapsed.Days),
		}, true
	}

	return Escalation{}, false
}

// EscalationReason renders the activity reason, e.g. "Blocked for 3 days".
func EscalationReason(status domain.Status, days int) string {
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%s for %d %s", status.Label(), days, unit)
}

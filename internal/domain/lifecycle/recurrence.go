package lifecycle

import (
	"regexp"
	"strings"

	"github.com/phrazzld/cadence-api/internal/domain"
)

var (
	quarterPattern  = regexp.MustCompile(`q[1-4]`)
	numberedPattern = regexp.MustCompile(`(?:^|[\s#-])\d+\s*$`)
	suffixPattern   = regexp.MustCompile(`\s*(?:-\s*|#)\d+\s*$`)
)

// Detection is the result of classifying a meeting title.
type Detection struct {
	IsRecurring bool              `json:"is_recurring"`
	Recurrence  domain.Recurrence `json:"recurrence,omitempty"`
	SeriesTitle string            `json:"series_title,omitempty"`
}

// DetectRecurrence classifies a meeting title into a cadence and the
// canonical series title. The first matching rule wins; biweekly must be
// tested before weekly because it contains it.
func DetectRecurrence(title string) Detection {
	lower := strings.ToLower(title)

	var recurrence domain.Recurrence
	switch {
	case strings.Contains(lower, "biweekly"), strings.Contains(lower, "bi-weekly"):
		recurrence = domain.RecurrenceBiweekly
	case strings.Contains(lower, "weekly"), strings.Contains(lower, "week"):
		recurrence = domain.RecurrenceWeekly
	case strings.Contains(lower, "monthly"):
		recurrence = domain.RecurrenceMonthly
	case strings.Contains(lower, "quarterly"), quarterPattern.MatchString(lower):
		recurrence = domain.RecurrenceQuarterly
	case numberedPattern.MatchString(lower):
		recurrence = domain.RecurrenceWeekly
	default:
		return Detection{}
	}

	return Detection{
		IsRecurring: true,
		Recurrence:  recurrence,
		SeriesTitle: SeriesTitle(title),
	}
}

// SeriesTitle strips a trailing "- <n>" or "#<n>" and surrounding whitespace.
func SeriesTitle(title string) string {
	return strings.TrimSpace(suffixPattern.ReplaceAllString(title, ""))
}

// Package redact scrubs credentials, contact details and query text from
// strings before they are logged or returned in error responses. Errors from
// the store and the broker clients can echo connection URLs, SQL and card
// participants' email addresses.
package redact

import (
	"log/slog"
	"regexp"
)

// Placeholders substituted for redacted fragments.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	StackTracePlaceholder         = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run in order; earlier rules remove text later rules would
// otherwise match.
var rules = []rule{
	{
		// Stack trace fragments
		pattern:     regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*`),
		replacement: StackTracePlaceholder,
	},
	{
		// User info of postgres, redis and amqp connection URLs
		pattern:     regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|rediss?|amqps?)://[^@\s/]+@`),
		replacement: RedactedCredentialPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		replacement: RedactedJWTPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/]{8,}=*`),
		replacement: "Bearer " + RedactionPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[=:]\s*\S+`),
		replacement: RedactedCredentialPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|token)\s*[=:]\s*[A-Za-z0-9_\-.~+/]{8,}`),
		replacement: RedactedKeyPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		replacement: RedactedEmailPlaceholder,
	},
	{
		// Statements echoed by the driver, including their arguments
		pattern: regexp.MustCompile(
			`(?i)\b(?:SELECT\s.+?\sFROM|INSERT\s+INTO|UPDATE\s+\w+\s+SET|DELETE\s+FROM)\b[^;]*`,
		),
		replacement: RedactedSQLPlaceholder,
	},
	{
		// Absolute file paths with at least two segments
		pattern:     regexp.MustCompile(`(?:/[\w.-]+){2,}`),
		replacement: RedactedPathPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// ErrorAttr returns the redacted error as the "error" log attribute.
func ErrorAttr(err error) slog.Attr {
	return slog.String("error", Error(err))
}

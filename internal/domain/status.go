package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a card.
type Status string

// The four card states. Done is terminal for escalation and carryover.
const (
	StatusToDo       Status = "ToDo"
	StatusInProgress Status = "InProgress"
	StatusBlocked    Status = "Blocked"
	StatusDone       Status = "Done"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusToDo, StatusInProgress, StatusBlocked, StatusDone}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the card's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusDone
}

// Label returns the human readable name used in activity reasons and the UI.
func (s Status) Label() string {
	switch s {
	case StatusToDo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusBlocked:
		return "Blocked"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// ParseStatus accepts the canonical value or its label, case-insensitively.
func ParseStatus(value string) (Status, error) {
	normalized := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(value))
	for _, s := range Statuses {
		if strings.ToLower(string(s)) == normalized {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}

// Priority is the urgency of a card. The zero value is not a valid priority;
// the numeric order of the constants is the total order low < medium < high < urgent.
type Priority int8

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

// Valid reports whether p is one of the four priorities.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// HigherThan reports whether p ranks strictly above other.
func (p Priority) HigherThan(other Priority) bool {
	return p > other
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int8(p))
}

// ParsePriority converts a priority name into a Priority.
func ParsePriority(value string) (Priority, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for p, name := range priorityNames {
		if name == v {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, value)
}

// MarshalText encodes the priority by name so JSON payloads stay readable.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a priority name.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the priority as its name.
func (p Priority) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int8(p))
	}
	return p.String(), nil
}

// Scan reads a priority stored as text.
func (p *Priority) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	case nil:
		return fmt.Errorf("%w: null", ErrInvalidPriority)
	}
	return fmt.Errorf("%w: unsupported type %T", ErrInvalidPriority, src)
}

// Package lifecycle implements the time-driven policies applied to meeting
// cards: status duration classification, priority escalation, recurrence
// detection, series aggregates, carryover cloning, lineage resolution and
// meeting-to-meeting comparison.
//
// Every function here is pure. Callers pass the current time explicitly and
// persist the results themselves.
package lifecycle

// Package service orchestrates the lifecycle engine over the stores.
//
// The meeting-created pipeline (MeetingService.CreateMeeting) stores a
// meeting and its cards, classifies the title, links recurring meetings to
// their series (SeriesLinker) and carries unresolved cards forward from the
// predecessor (CarryoverEngine). Linking and carryover failures never fail
// the request.
//
// The Escalator is the scheduled batch job that raises priorities; it
// reports typed per-card outcomes instead of returning errors.
// ComparisonService and CardService serve the on-demand views and the edits
// made by people.
//
// Services depend on the store interfaces and a store.Transactor, never on
// the PostgreSQL implementations.
package service

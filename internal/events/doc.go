// Package events carries domain events out of the services after their
// writes commit.
//
// Services emit events without knowing which handlers process them. The
// in-memory emitter fans each event out to every registered handler; the
// RabbitMQ publisher in internal/platform/rabbitmq is one such handler.
//
// The event types are:
//   - card.priority_escalated: the escalator raised a card's priority
//   - meeting.series_linked: a meeting joined a recurring series
//   - meeting.cards_carried_over: unresolved cards were copied into a meeting
package events

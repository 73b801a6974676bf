// Package rabbitmq forwards domain events to a RabbitMQ topic exchange so
// that notification consumers outside this service can react to them.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the exchange used when none is configured.
const DefaultExchange = "cadence.events"

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp.Channel used by the Publisher.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
	Close() error
}

// Publisher publishes every event it handles to a durable topic exchange,
// using the event type as the routing key. It implements events.EventHandler.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *slog.Logger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Dial connects to amqpURL, opens a channel and declares the exchange.
func Dial(amqpURL, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := newPublisher(ch, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *slog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}

	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With(slog.String("component", "rabbitmq_publisher")),
	}, nil
}

// HandleEvent publishes event as a persistent JSON message.
func (p *Publisher) HandleEvent(ctx context.Context, event *events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.CreatedAt,
		Type:         event.Type,
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(pubCtx, p.exchange, event.Type, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	logger.FromContextOrDefault(ctx, p.logger).Debug("event published",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.String("exchange", p.exchange))
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

var _ events.EventHandler = (*Publisher)(nil)

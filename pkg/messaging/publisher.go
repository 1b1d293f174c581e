package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// Publisher publishes events to the events exchange
type Publisher struct {
	rabbitmq *RabbitMQ
	logger   *logger.Logger
}

// NewPublisher creates a new publisher and declares the events exchange
func NewPublisher(rmq *RabbitMQ, log *logger.Logger) (*Publisher, error) {
	if err := rmq.DeclareExchange(ExchangeEvents); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		rabbitmq: rmq,
		logger:   log,
	}, nil
}

// Publish wraps the payload in an event envelope and publishes it using
// the event type as the routing key. The store scope, when present on the
// context, is stamped onto the envelope.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	storeID, _ := storectx.StoreID(ctx)
	event := NewEvent(eventType, storeID, payload)

	if corrID, ok := ctx.Value(correlationIDKey{}).(string); ok {
		event.CorrelationID = corrID
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.rabbitmq.Channel().PublishWithContext(
		publishCtx,
		ExchangeEvents,
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     event.ID,
			Timestamp:     event.Timestamp,
			CorrelationId: event.CorrelationID,
			Body:          body,
		},
	)
	if err != nil {
		p.logger.Error().Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to publish event")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Msg("event published")

	return nil
}

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation ID to the context for publishing
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

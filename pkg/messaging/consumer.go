package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// HandlerFunc processes a single event. Returning an error triggers a retry
// or, after maxRetries deliveries, routing to the dead letter queue.
type HandlerFunc func(ctx context.Context, event *Event) error

// Consumer consumes events from a queue and dispatches them to handlers
type Consumer struct {
	rabbitmq   *RabbitMQ
	logger     *logger.Logger
	queueName  string
	handlers   map[string]HandlerFunc
	maxRetries int
}

// NewConsumer creates a consumer bound to the given queue
func NewConsumer(rmq *RabbitMQ, log *logger.Logger, queueName string) *Consumer {
	return &Consumer{
		rabbitmq:   rmq,
		logger:     log,
		queueName:  queueName,
		handlers:   make(map[string]HandlerFunc),
		maxRetries: 3,
	}
}

// Handle registers a handler for an event type (routing key)
func (c *Consumer) Handle(eventType string, handler HandlerFunc) {
	c.handlers[eventType] = handler
}

// Start declares the queue, binds the registered event types and begins
// consuming. It blocks until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.rabbitmq.DeclareExchange(ExchangeEvents); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rabbitmq.DeclareDeadLetterQueue(c.queueName); err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	queue, err := c.rabbitmq.DeclareQueue(c.queueName)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	for eventType := range c.handlers {
		if err := c.rabbitmq.BindQueue(queue.Name, ExchangeEvents, eventType); err != nil {
			return fmt.Errorf("failed to bind queue for %s: %w", eventType, err)
		}
	}

	deliveries, err := c.rabbitmq.Channel().Consume(
		queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopping")
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.processDelivery(ctx, delivery)
		}
	}
}

func (c *Consumer) processDelivery(ctx context.Context, delivery amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event, rejecting")
		_ = delivery.Reject(false) // unparseable, straight to DLQ
		return
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Warn().Str("event_type", event.Type).Msg("no handler registered, acking")
		_ = delivery.Ack(false)
		return
	}

	if event.CorrelationID != "" {
		ctx = WithCorrelationID(ctx, event.CorrelationID)
	}

	if err := handler(ctx, &event); err != nil {
		retries := deliveryRetryCount(delivery)
		if retries >= c.maxRetries {
			c.logger.Error().Err(err).
				Str("event_type", event.Type).
				Str("event_id", event.ID).
				Int("retries", retries).
				Msg("handler failed, sending to DLQ")
			_ = delivery.Reject(false)
			return
		}

		c.logger.Warn().Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Int("retries", retries).
			Msg("handler failed, requeueing")
		_ = delivery.Nack(false, true)
		return
	}

	_ = delivery.Ack(false)
}

func deliveryRetryCount(delivery amqp.Delivery) int {
	deaths, ok := delivery.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}

	count := 0
	for _, d := range deaths {
		death, ok := d.(amqp.Table)
		if !ok {
			continue
		}
		if n, ok := death["count"].(int64); ok {
			count += int(n)
		}
	}
	return count
}

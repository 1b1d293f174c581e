package events

import (
	"context"

	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
)

// Broker is the publishing capability the training module needs
type Broker interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// TrainingEventPublisher publishes training-related events
type TrainingEventPublisher struct {
	broker Broker
	logger *logger.Logger
}

// NewTrainingEventPublisher creates a new training event publisher
func NewTrainingEventPublisher(broker Broker, log *logger.Logger) *TrainingEventPublisher {
	return &TrainingEventPublisher{
		broker: broker,
		logger: log,
	}
}

// PublishTrainingApproved publishes a training approved event
func (p *TrainingEventPublisher) PublishTrainingApproved(ctx context.Context, payload messaging.TrainingApprovedPayload) {
	if err := p.broker.Publish(ctx, messaging.EventTrainingApproved, payload); err != nil {
		p.logger.Error().Err(err).Str("instance_id", payload.InstanceID).Msg("failed to publish training approved event")
	}
}

package events

import (
	"context"

	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
)

// Broker is the publishing capability the checklist module needs
type Broker interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// ChecklistEventPublisher publishes checklist-related events
type ChecklistEventPublisher struct {
	broker Broker
	logger *logger.Logger
}

// NewChecklistEventPublisher creates a new checklist event publisher
func NewChecklistEventPublisher(broker Broker, log *logger.Logger) *ChecklistEventPublisher {
	return &ChecklistEventPublisher{
		broker: broker,
		logger: log,
	}
}

// PublishChecklistCompleted publishes a checklist completed event
func (p *ChecklistEventPublisher) PublishChecklistCompleted(ctx context.Context, payload messaging.ChecklistCompletedPayload) {
	if err := p.broker.Publish(ctx, messaging.EventChecklistComplete, payload); err != nil {
		p.logger.Error().Err(err).Str("checklist_id", payload.ChecklistID).Msg("failed to publish checklist completed event")
	}
}

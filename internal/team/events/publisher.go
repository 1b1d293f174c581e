package events

import (
	"context"
	"time"

	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
)

// Broker is the publishing capability the team module needs
type Broker interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// TeamEventPublisher publishes team-related events
type TeamEventPublisher struct {
	broker Broker
	logger *logger.Logger
}

// NewTeamEventPublisher creates a new team event publisher
func NewTeamEventPublisher(broker Broker, log *logger.Logger) *TeamEventPublisher {
	return &TeamEventPublisher{
		broker: broker,
		logger: log,
	}
}

// PublishStaffInvited publishes a staff invited event. The mailer picks
// it up and sends the invitation email; the raw token travels only here,
// never back out through the API.
func (p *TeamEventPublisher) PublishStaffInvited(ctx context.Context, inv *repository.Invitation, storeName, rawToken string) {
	data := messaging.StaffInvitedPayload{
		InvitationID: inv.ID,
		Email:        inv.Email,
		FirstName:    inv.FirstName,
		LastName:     inv.LastName,
		Role:         inv.Role,
		StoreName:    storeName,
		InviteToken:  rawToken,
		ExpiresAt:    inv.ExpiresAt.Format(time.RFC3339),
	}

	if err := p.broker.Publish(ctx, messaging.EventStaffInvited, data); err != nil {
		p.logger.Error().Err(err).Str("invitation_id", inv.ID).Msg("failed to publish staff invited event")
	}
}

// PublishStaffDeactivated publishes a staff deactivated event
func (p *TeamEventPublisher) PublishStaffDeactivated(ctx context.Context, profile *repository.Profile, deactivatedBy, reason string) {
	data := messaging.StaffDeactivatedPayload{
		ProfileID:     profile.ID,
		Email:         profile.Email,
		DeactivatedBy: deactivatedBy,
		Reason:        reason,
	}

	if err := p.broker.Publish(ctx, messaging.EventStaffDeactivated, data); err != nil {
		p.logger.Error().Err(err).Str("profile_id", profile.ID).Msg("failed to publish staff deactivated event")
	}
}

package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smokestack/smokestack-backend/internal/mailer/service"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
)

// StaffConsumer turns staff invitation events into outbound email.
// Delivery failures are logged and acked, never retried.
type StaffConsumer struct {
	mailer  *service.MailerService
	baseURL string
	logger  *logger.Logger
}

// NewStaffConsumer creates a new staff event consumer
func NewStaffConsumer(mailer *service.MailerService, baseURL string, log *logger.Logger) *StaffConsumer {
	return &StaffConsumer{
		mailer:  mailer,
		baseURL: baseURL,
		logger:  log,
	}
}

// Register binds this consumer's handlers
func (c *StaffConsumer) Register(consumer *messaging.Consumer) {
	consumer.Handle(messaging.EventStaffInvited, c.handleStaffInvited)
}

func (c *StaffConsumer) handleStaffInvited(ctx context.Context, event *messaging.Event) error {
	var payload messaging.StaffInvitedPayload
	if err := decodePayload(event.Payload, &payload); err != nil {
		return err
	}

	err := c.mailer.SendInvitation(ctx, c.baseURL,
		payload.Email, payload.FirstName, payload.StoreName,
		payload.Role, payload.InviteToken, payload.ExpiresAt)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("invitation_id", payload.InvitationID).
			Str("email", payload.Email).
			Msg("invitation email failed, not retrying")
	}
	return nil
}

// decodePayload round-trips the envelope's generic payload into a typed
// struct. The consumer deserializes the envelope before knowing the
// event type, so payloads arrive as generic maps.
func decodePayload(raw interface{}, dest interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("re-marshal event payload: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}

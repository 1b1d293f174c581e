package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Exchange and queue names
const (
	ExchangeEvents     = "smokestack.events"
	ExchangeDeadLetter = "smokestack.dlx"

	QueueMailer = "mailer.events"
)

// Event routing keys
const (
	EventStaffInvited      = "team.staff.invited"
	EventStaffDeactivated  = "team.staff.deactivated"
	EventChecklistComplete = "checklist.completed"
	EventTrainingApproved  = "training.approved"
)

// Event is the envelope for all published events
type Event struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	StoreID       string      `json:"store_id,omitempty"`
	Payload       interface{} `json:"payload"`
}

// NewEvent creates an event envelope with a fresh ID and timestamp
func NewEvent(eventType string, storeID string, payload interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		StoreID:   storeID,
		Payload:   payload,
	}
}

// StaffInvitedPayload is published when a staff invitation is created.
// The mailer consumes it and sends the invitation email.
type StaffInvitedPayload struct {
	InvitationID string `json:"invitation_id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `json:"role"`
	StoreName    string `json:"store_name"`
	InviteToken  string `json:"invite_token"`
	ExpiresAt    string `json:"expires_at"`
}

// StaffDeactivatedPayload is published when an account is deactivated
type StaffDeactivatedPayload struct {
	ProfileID     string `json:"profile_id"`
	Email         string `json:"email"`
	DeactivatedBy string `json:"deactivated_by"`
	Reason        string `json:"reason,omitempty"`
}

// ChecklistCompletedPayload is published when a checklist reaches completed status
type ChecklistCompletedPayload struct {
	ChecklistID  string `json:"checklist_id"`
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`
	Date         string `json:"date"`
	Progress     int    `json:"progress"`
}

// TrainingApprovedPayload is published when a leader approves a completed training
type TrainingApprovedPayload struct {
	InstanceID         string `json:"instance_id"`
	TemplateID         string `json:"template_id"`
	ProfileID          string `json:"profile_id"`
	ApprovedBy         string `json:"approved_by"`
	CertificationEarned bool  `json:"certification_earned"`
	ExpiresAt          string `json:"expires_at,omitempty"`
}

package service

import (
	"context"
	"encoding/json"

	"golang.org/x/crypto/bcrypt"

	"github.com/smokestack/smokestack-backend/internal/team/events"
	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/permissions"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// ProfileService handles staff account business logic
type ProfileService struct {
	profileRepo *repository.ProfileRepository
	auditRepo   *repository.AuditLogRepository
	publisher   *events.TeamEventPublisher
	logger      *logger.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(
	profileRepo *repository.ProfileRepository,
	auditRepo *repository.AuditLogRepository,
	publisher *events.TeamEventPublisher,
	log *logger.Logger,
) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		auditRepo:   auditRepo,
		publisher:   publisher,
		logger:      log,
	}
}

// GetByID gets a profile by ID
func (s *ProfileService) GetByID(ctx context.Context, id string) (*repository.Profile, error) {
	return s.profileRepo.GetByID(ctx, id)
}

// List lists the store's profiles
func (s *ProfileService) List(ctx context.Context, activeOnly bool) ([]*repository.Profile, error) {
	return s.profileRepo.List(ctx, activeOnly)
}

// Update updates a profile. Role changes require account management
// capability (manager or operator).
func (s *ProfileService) Update(ctx context.Context, p *repository.Profile) error {
	current, err := s.profileRepo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}

	if p.Role != current.Role {
		actorRole := storectx.Role(ctx)
		if !permissions.CanManageAccounts(actorRole) {
			return errors.Forbidden("only managers can change roles")
		}
	}

	if err := s.profileRepo.Update(ctx, p); err != nil {
		return err
	}

	s.audit(ctx, "profile.updated", current, p)
	return nil
}

// ImportStaff creates the store's initial roster in one batch. Used during
// onboarding's employee import step; imported accounts start active and
// without a PIN.
func (s *ProfileService) ImportStaff(ctx context.Context, entries []*repository.Profile) error {
	actorRole := storectx.Role(ctx)
	if !permissions.CanManageAccounts(actorRole) {
		return errors.Forbidden("only managers can import staff")
	}

	for _, p := range entries {
		p.IsActive = true
	}
	if err := s.profileRepo.CreateBatch(ctx, entries); err != nil {
		return err
	}

	actorID, _ := storectx.ProfileID(ctx)
	newValues, _ := json.Marshal(map[string]any{"count": len(entries)})
	entry := &repository.AuditLog{
		ActorID:    &actorID,
		Action:     "staff.imported",
		EntityType: "profile",
		NewValues:  newValues,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Int("count", len(entries)).Msg("failed to write audit entry")
	}
	return nil
}

// Deactivate deactivates an account, records an audit trail entry with the
// before and after state, and publishes the deactivation event.
func (s *ProfileService) Deactivate(ctx context.Context, id, reason string) error {
	actorRole := storectx.Role(ctx)
	if !permissions.CanManageAccounts(actorRole) {
		return errors.Forbidden("only managers can deactivate accounts")
	}

	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !profile.IsActive {
		return errors.StateConflict("account is already deactivated")
	}

	if err := s.profileRepo.SetActive(ctx, id, false); err != nil {
		return err
	}

	actorID, _ := storectx.ProfileID(ctx)
	oldValues, _ := json.Marshal(map[string]any{"is_active": true})
	newValues, _ := json.Marshal(map[string]any{"is_active": false})
	entry := &repository.AuditLog{
		ActorID:    &actorID,
		Action:     "account.deactivated",
		EntityType: "profile",
		EntityID:   &id,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if reason != "" {
		entry.Reason = &reason
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("profile_id", id).Msg("failed to write audit entry")
	}

	s.publisher.PublishStaffDeactivated(ctx, profile, actorID, reason)
	return nil
}

// Reactivate reactivates a deactivated account
func (s *ProfileService) Reactivate(ctx context.Context, id string) error {
	actorRole := storectx.Role(ctx)
	if !permissions.CanManageAccounts(actorRole) {
		return errors.Forbidden("only managers can reactivate accounts")
	}

	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if profile.IsActive {
		return errors.StateConflict("account is already active")
	}

	if err := s.profileRepo.SetActive(ctx, id, true); err != nil {
		return err
	}

	actorID, _ := storectx.ProfileID(ctx)
	oldValues, _ := json.Marshal(map[string]any{"is_active": false})
	newValues, _ := json.Marshal(map[string]any{"is_active": true})
	entry := &repository.AuditLog{
		ActorID:    &actorID,
		Action:     "account.reactivated",
		EntityType: "profile",
		EntityID:   &id,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("profile_id", id).Msg("failed to write audit entry")
	}
	return nil
}

// SetPin sets a staff member's kiosk PIN. PINs are bcrypt hashed at rest.
func (s *ProfileService) SetPin(ctx context.Context, id, pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return errors.Validation(map[string]string{"pin": "must be 4 to 8 digits"})
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return errors.Validation(map[string]string{"pin": "must contain only digits"})
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal(err.Error())
	}
	return s.profileRepo.SetPinHash(ctx, id, string(hash))
}

// PinSignIn matches a kiosk PIN against active profiles across all stores.
// This is the one deliberate cross-store lookup; on a match the caller gets
// the profile and its store, which together form the session's scope.
func (s *ProfileService) PinSignIn(ctx context.Context, pin string) (*repository.Profile, error) {
	candidates, err := s.profileRepo.ActivePinProfiles(ctx)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if candidate.PinHash == nil {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(*candidate.PinHash), []byte(pin)) == nil {
			s.logger.Info().
				Str("profile_id", candidate.ID).
				Str("store_id", candidate.StoreID).
				Msg("kiosk PIN sign-in")
			return candidate, nil
		}
	}

	return nil, errors.InvalidCredentials()
}

// ListAuditLog lists the store's audit trail
func (s *ProfileService) ListAuditLog(ctx context.Context, limit int) ([]*repository.AuditLog, error) {
	actorRole := storectx.Role(ctx)
	if !permissions.IsLeader(actorRole) {
		return nil, errors.Forbidden("insufficient permissions")
	}
	return s.auditRepo.List(ctx, limit)
}

func (s *ProfileService) audit(ctx context.Context, action string, before, after *repository.Profile) {
	actorID, _ := storectx.ProfileID(ctx)
	oldValues, _ := json.Marshal(before)
	newValues, _ := json.Marshal(after)
	entry := &repository.AuditLog{
		ActorID:    &actorID,
		Action:     action,
		EntityType: "profile",
		EntityID:   &before.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}

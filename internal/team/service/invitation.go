package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/smokestack/smokestack-backend/internal/team/events"
	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/config"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/permissions"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// InvitationService handles the employee invitation lifecycle
type InvitationService struct {
	invitationRepo *repository.InvitationRepository
	profileRepo    *repository.ProfileRepository
	storeRepo      *repository.StoreRepository
	publisher      *events.TeamEventPublisher
	expiry         time.Duration
	logger         *logger.Logger
}

// NewInvitationService creates a new invitation service
func NewInvitationService(
	invitationRepo *repository.InvitationRepository,
	profileRepo *repository.ProfileRepository,
	storeRepo *repository.StoreRepository,
	publisher *events.TeamEventPublisher,
	cfg *config.InviteConfig,
	log *logger.Logger,
) *InvitationService {
	return &InvitationService{
		invitationRepo: invitationRepo,
		profileRepo:    profileRepo,
		storeRepo:      storeRepo,
		publisher:      publisher,
		expiry:         cfg.Expiry,
		logger:         log,
	}
}

// Invite creates a pending invitation and publishes the event the mailer
// turns into an email. A pending invitation for the same email is a
// conflict; the raw token is never stored, only its SHA-256 hash.
func (s *InvitationService) Invite(ctx context.Context, inv *repository.Invitation) (*repository.Invitation, error) {
	actorRole := storectx.Role(ctx)
	if !permissions.CanManageAccounts(actorRole) {
		return nil, errors.Forbidden("only managers can invite staff")
	}

	existing, err := s.invitationRepo.PendingByEmail(ctx, inv.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Conflict("a pending invitation for this email already exists")
	}

	rawToken, tokenHash, err := newInviteToken()
	if err != nil {
		return nil, errors.Internal(err.Error())
	}

	actorID, _ := storectx.ProfileID(ctx)
	inv.TokenHash = tokenHash
	inv.InvitedBy = &actorID
	inv.ExpiresAt = time.Now().Add(s.expiry)
	if inv.Role == "" {
		inv.Role = "team_member"
	}

	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	storeName := ""
	storeID, _ := storectx.StoreID(ctx)
	if store, err := s.storeRepo.GetByID(ctx, storeID); err == nil {
		storeName = store.Name
	}

	s.publisher.PublishStaffInvited(ctx, inv, storeName, rawToken)
	return inv, nil
}

// Accept redeems an invitation token and creates the staff profile in the
// inviting store. Expiry is evaluated here, at redemption time.
func (s *InvitationService) Accept(ctx context.Context, rawToken string) (*repository.Profile, error) {
	sum := sha256.Sum256([]byte(rawToken))
	inv, err := s.invitationRepo.GetByTokenHash(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		return nil, err
	}

	// The invitee carries no scope of their own; everything below runs in
	// the inviting store.
	ctx = storectx.WithStoreID(ctx, inv.StoreID)

	switch inv.Status {
	case repository.InvitationPending:
		// proceed
	case repository.InvitationAccepted:
		return nil, errors.StateConflict("invitation has already been accepted")
	default:
		return nil, errors.StateConflict("invitation is no longer valid")
	}

	if time.Now().After(inv.ExpiresAt) {
		if err := s.invitationRepo.SetStatus(ctx, inv.ID, repository.InvitationExpired); err != nil {
			s.logger.Error().Err(err).Str("invitation_id", inv.ID).Msg("failed to mark invitation expired")
		}
		return nil, errors.StateConflict("invitation has expired")
	}

	profile := &repository.Profile{
		Email:     inv.Email,
		FirstName: inv.FirstName,
		LastName:  inv.LastName,
		Role:      inv.Role,
		IsActive:  true,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, err
	}

	if err := s.invitationRepo.SetStatus(ctx, inv.ID, repository.InvitationAccepted); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invitation_id", inv.ID).
		Str("profile_id", profile.ID).
		Msg("invitation accepted")
	return profile, nil
}

// Revoke withdraws a pending invitation
func (s *InvitationService) Revoke(ctx context.Context, id string) error {
	actorRole := storectx.Role(ctx)
	if !permissions.CanManageAccounts(actorRole) {
		return errors.Forbidden("only managers can revoke invitations")
	}

	inv, err := s.invitationRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != repository.InvitationPending {
		return errors.InvalidStateTransition(inv.Status, repository.InvitationRevoked)
	}

	return s.invitationRepo.SetStatus(ctx, id, repository.InvitationRevoked)
}

// List lists the store's invitations
func (s *InvitationService) List(ctx context.Context) ([]*repository.Invitation, error) {
	return s.invitationRepo.List(ctx)
}

// newInviteToken returns a fresh random token and its SHA-256 hex hash.
// The hash is deterministic so the redemption lookup is an exact match.
func newInviteToken() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(raw))
	return raw, hex.EncodeToString(sum[:]), nil
}

package service

import (
	"context"

	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/permissions"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// QcashService handles the Q-Cash rewards ledger
type QcashService struct {
	qcashRepo   *repository.QcashRepository
	profileRepo *repository.ProfileRepository
	logger      *logger.Logger
}

// NewQcashService creates a new Q-Cash service
func NewQcashService(qcashRepo *repository.QcashRepository, profileRepo *repository.ProfileRepository, log *logger.Logger) *QcashService {
	return &QcashService{
		qcashRepo:   qcashRepo,
		profileRepo: profileRepo,
		logger:      log,
	}
}

// Award grants Q-Cash to a staff member. Leaders only.
func (s *QcashService) Award(ctx context.Context, profileID string, amount int, description string) (*repository.QcashTransaction, error) {
	actorRole := storectx.Role(ctx)
	if !permissions.IsLeader(actorRole) {
		return nil, errors.Forbidden("only leaders can award Q-Cash")
	}
	if amount <= 0 {
		return nil, errors.Validation(map[string]string{"amount": "must be positive"})
	}

	if _, err := s.profileRepo.GetByID(ctx, profileID); err != nil {
		return nil, err
	}

	actorID, _ := storectx.ProfileID(ctx)
	txn := &repository.QcashTransaction{
		ProfileID: profileID,
		Amount:    amount,
		Type:      repository.QcashAward,
		AwardedBy: &actorID,
	}
	if description != "" {
		txn.Description = &description
	}

	if err := s.qcashRepo.Insert(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Transfer moves Q-Cash between two staff members. The sender must cover
// the amount; debit and credit land in one transaction.
func (s *QcashService) Transfer(ctx context.Context, fromID, toID string, amount int, description string) error {
	if amount <= 0 {
		return errors.Validation(map[string]string{"amount": "must be positive"})
	}
	if fromID == toID {
		return errors.BadRequest("cannot transfer Q-Cash to yourself")
	}

	actorID, _ := storectx.ProfileID(ctx)
	actorRole := storectx.Role(ctx)
	if actorID != fromID && !permissions.IsLeader(actorRole) {
		return errors.Forbidden("you can only transfer your own Q-Cash")
	}

	if _, err := s.profileRepo.GetByID(ctx, toID); err != nil {
		return err
	}

	balance, err := s.qcashRepo.Balance(ctx, fromID)
	if err != nil {
		return err
	}
	if balance < amount {
		return errors.StateConflict("insufficient Q-Cash balance")
	}

	var desc *string
	if description != "" {
		desc = &description
	}
	out := &repository.QcashTransaction{
		ProfileID:   fromID,
		Amount:      -amount,
		Type:        repository.QcashTransferOut,
		Description: desc,
	}
	in := &repository.QcashTransaction{
		ProfileID:   toID,
		Amount:      amount,
		Type:        repository.QcashTransferIn,
		Description: desc,
	}
	return s.qcashRepo.InsertPair(ctx, out, in)
}

// Balance returns a staff member's current Q-Cash balance
func (s *QcashService) Balance(ctx context.Context, profileID string) (int, error) {
	return s.qcashRepo.Balance(ctx, profileID)
}

// Ledger lists a staff member's Q-Cash history
func (s *QcashService) Ledger(ctx context.Context, profileID string, limit int) ([]*repository.QcashTransaction, error) {
	return s.qcashRepo.ListByProfile(ctx, profileID, limit)
}

package service

import (
	"context"

	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/permissions"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// Onboarding steps, strictly forward-only
const (
	StepStoreSetup     = "store_setup"
	StepEmployeeImport = "employee_import"
	StepCompleted      = "completed"
)

var nextStep = map[string]string{
	StepStoreSetup:     StepEmployeeImport,
	StepEmployeeImport: StepCompleted,
}

// OnboardingService sequences a new store through its setup steps
type OnboardingService struct {
	stores *repository.StoreRepository
	logger *logger.Logger
}

// NewOnboardingService creates a new onboarding service
func NewOnboardingService(stores *repository.StoreRepository, log *logger.Logger) *OnboardingService {
	return &OnboardingService{
		stores: stores,
		logger: log,
	}
}

// Status reports the store's current step and whether setup still gates
// access to the rest of the application.
type Status struct {
	StoreID    string `json:"store_id"`
	Step       string `json:"step"`
	Incomplete bool   `json:"incomplete"`
}

// GetStatus returns the store's onboarding state
func (s *OnboardingService) GetStatus(ctx context.Context) (*Status, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}

	return &Status{
		StoreID:    store.ID,
		Step:       store.OnboardingStep,
		Incomplete: Incomplete(store),
	}, nil
}

// CompleteStoreSetup records the store's profile details and advances to
// employee import. The address is required; the access gate stays up
// without it.
func (s *OnboardingService) CompleteStoreSetup(ctx context.Context, name, address string, phone *string) (*Status, error) {
	if !permissions.CanManageAccounts(storectx.Role(ctx)) {
		return nil, errors.Forbidden("only managers can run store setup")
	}

	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.OnboardingStep != StepStoreSetup {
		return nil, errors.InvalidStateTransition(store.OnboardingStep, StepEmployeeImport)
	}

	store.Name = name
	store.Address = &address
	store.Phone = phone
	if err := s.stores.Update(ctx, store); err != nil {
		return nil, err
	}

	return s.advance(ctx, store)
}

// CompleteEmployeeImport advances from employee import to completed.
// Called after the initial staff invitations have been sent.
func (s *OnboardingService) CompleteEmployeeImport(ctx context.Context) (*Status, error) {
	if !permissions.CanManageAccounts(storectx.Role(ctx)) {
		return nil, errors.Forbidden("only managers can run store setup")
	}

	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.OnboardingStep != StepEmployeeImport {
		return nil, errors.InvalidStateTransition(store.OnboardingStep, StepCompleted)
	}

	return s.advance(ctx, store)
}

func (s *OnboardingService) advance(ctx context.Context, store *repository.Store) (*Status, error) {
	next, ok := nextStep[store.OnboardingStep]
	if !ok {
		return nil, errors.StateConflict("onboarding is already complete")
	}

	if err := s.stores.SetOnboardingStep(ctx, store.ID, next); err != nil {
		return nil, err
	}
	store.OnboardingStep = next

	return &Status{
		StoreID:    store.ID,
		Step:       next,
		Incomplete: Incomplete(store),
	}, nil
}

// Incomplete reports whether a store still needs onboarding: either the
// sequencer has not finished or required profile fields are unset.
func Incomplete(store *repository.Store) bool {
	if store.OnboardingStep != StepCompleted {
		return true
	}
	return store.Address == nil || *store.Address == ""
}

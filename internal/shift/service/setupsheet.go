package service

import (
	"context"
	"time"

	"github.com/smokestack/smokestack-backend/internal/assignment"
	"github.com/smokestack/smokestack-backend/internal/shift/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// SetupSheetService handles setup sheet business logic
type SetupSheetService struct {
	repo   *repository.SetupSheetRepository
	staff  StaffPool
	logger *logger.Logger
}

// NewSetupSheetService creates a new setup sheet service
func NewSetupSheetService(repo *repository.SetupSheetRepository, staff StaffPool, log *logger.Logger) *SetupSheetService {
	return &SetupSheetService{
		repo:   repo,
		staff:  staff,
		logger: log,
	}
}

// Create builds the position plan for a (date, shift type) pair. One
// sheet per pair; a second create conflicts.
func (s *SetupSheetService) Create(ctx context.Context, sheet *repository.SetupSheet) (*repository.SetupSheet, error) {
	existing, err := s.repo.GetByDateAndShift(ctx, sheet.Date, sheet.ShiftType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.StateConflict("a setup sheet already exists for this date and shift")
	}

	if err := s.repo.Create(ctx, sheet); err != nil {
		return nil, err
	}
	return sheet, nil
}

// GetByID gets a sheet with its positions
func (s *SetupSheetService) GetByID(ctx context.Context, id string) (*repository.SetupSheet, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByDate lists the day's sheets
func (s *SetupSheetService) ListByDate(ctx context.Context, date time.Time) ([]*repository.SetupSheet, error) {
	return s.repo.ListByDate(ctx, date)
}

// AddPosition appends a station to a sheet
func (s *SetupSheetService) AddPosition(ctx context.Context, pos *repository.SetupPosition) error {
	return s.repo.AddPosition(ctx, pos)
}

// DeletePosition removes a station
func (s *SetupSheetService) DeletePosition(ctx context.Context, positionID string) error {
	return s.repo.DeletePosition(ctx, positionID)
}

// AssignPosition puts a staff member on a station through the move
// engine. Stations hold one occupant; assigning over a filled station
// displaces the current occupant back to the pool. Both sides persist
// inside one store-scoped transaction.
func (s *SetupSheetService) AssignPosition(ctx context.Context, sheetID, positionID, profileID string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	db := s.repo.DB()
	return db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		sheet, err := s.repo.GetByID(ctx, sheetID)
		if err != nil {
			return err
		}

		ws, err := s.workingSet(ctx, sheet)
		if err != nil {
			return err
		}
		if err := ws.Assign(profileID, positionID); err != nil {
			return mapEngineError(err)
		}

		return s.persistPositions(ctx, sheet, ws)
	})
}

// UnassignPosition clears a station, returning its occupant to the pool
func (s *SetupSheetService) UnassignPosition(ctx context.Context, sheetID, positionID string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	db := s.repo.DB()
	return db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		sheet, err := s.repo.GetByID(ctx, sheetID)
		if err != nil {
			return err
		}

		ws, err := s.workingSet(ctx, sheet)
		if err != nil {
			return err
		}
		if _, err := ws.Unassign(positionID); err != nil {
			return mapEngineError(err)
		}

		return s.persistPositions(ctx, sheet, ws)
	})
}

func (s *SetupSheetService) workingSet(ctx context.Context, sheet *repository.SetupSheet) (*assignment.WorkingSet, error) {
	activeIDs, err := s.staff.ActiveIDs(ctx)
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]bool)
	slots := make([]assignment.Slot, 0, len(sheet.Positions))
	for _, pos := range sheet.Positions {
		slot := assignment.Slot{ID: pos.ID}
		if pos.AssignedTo != nil {
			slot.Occupants = []string{*pos.AssignedTo}
			assigned[*pos.AssignedTo] = true
		}
		slots = append(slots, slot)
	}

	pool := make([]string, 0, len(activeIDs))
	for _, id := range activeIDs {
		if !assigned[id] {
			pool = append(pool, id)
		}
	}

	return assignment.NewWorkingSet(pool, slots...), nil
}

func (s *SetupSheetService) persistPositions(ctx context.Context, sheet *repository.SetupSheet, ws *assignment.WorkingSet) error {
	for _, pos := range sheet.Positions {
		occ, err := ws.Occupants(pos.ID)
		if err != nil {
			return err
		}

		var want *string
		if len(occ) > 0 {
			want = &occ[0]
		}

		if !sameAssignee(pos.AssignedTo, want) {
			if err := s.repo.SetPositionAssignee(ctx, pos.ID, want); err != nil {
				return err
			}
		}
	}
	return nil
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

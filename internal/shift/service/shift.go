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

// StaffPool supplies the IDs of staff who can be assigned work
type StaffPool interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// defaultShiftTimes maps a shift type to its default start and end when
// the caller does not supply times.
var defaultShiftTimes = map[string][2]string{
	"opening": {"05:00", "11:00"},
	"lunch":   {"10:00", "16:00"},
	"dinner":  {"15:00", "21:00"},
	"closing": {"18:00", "23:00"},
	"all_day": {"05:00", "23:00"},
}

// ShiftService handles shift scheduling business logic
type ShiftService struct {
	repo   *repository.ShiftRepository
	staff  StaffPool
	logger *logger.Logger
}

// NewShiftService creates a new shift service
func NewShiftService(repo *repository.ShiftRepository, staff StaffPool, log *logger.Logger) *ShiftService {
	return &ShiftService{
		repo:   repo,
		staff:  staff,
		logger: log,
	}
}

// CreateShiftInput describes a new shift. Times are optional; the shift
// type supplies defaults when they are blank.
type CreateShiftInput struct {
	Date      time.Time
	ShiftType string
	StartTime string
	EndTime   string
	Notes     *string
}

// Create schedules a shift
func (s *ShiftService) Create(ctx context.Context, in CreateShiftInput) (*repository.Shift, error) {
	defaults, ok := defaultShiftTimes[in.ShiftType]
	if !ok {
		return nil, errors.Validation(map[string]string{
			"shift_type": "must be one of: opening, lunch, dinner, closing, all_day",
		})
	}
	if in.StartTime == "" {
		in.StartTime = defaults[0]
	}
	if in.EndTime == "" {
		in.EndTime = defaults[1]
	}

	shift := &repository.Shift{
		Date:      in.Date,
		ShiftType: in.ShiftType,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Notes:     in.Notes,
	}
	if err := s.repo.Create(ctx, shift); err != nil {
		return nil, err
	}
	return shift, nil
}

// GetByID gets a shift with its roster
func (s *ShiftService) GetByID(ctx context.Context, id string) (*repository.Shift, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByDate lists the day's shifts
func (s *ShiftService) ListByDate(ctx context.Context, date time.Time) ([]*repository.Shift, error) {
	return s.repo.ListByDate(ctx, date)
}

// Update changes a shift's schedule fields
func (s *ShiftService) Update(ctx context.Context, shift *repository.Shift) error {
	if _, ok := defaultShiftTimes[shift.ShiftType]; !ok {
		return errors.Validation(map[string]string{
			"shift_type": "must be one of: opening, lunch, dinner, closing, all_day",
		})
	}
	return s.repo.Update(ctx, shift)
}

// Delete removes a shift and its roster
func (s *ShiftService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AddToRoster places a staff member on a shift through the move engine.
// Shifts are multi-occupant slots; the engine only checks the staff
// member is in the available pool and not already rostered.
func (s *ShiftService) AddToRoster(ctx context.Context, shiftID string, a *repository.Assignment) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	db := s.repo.DB()
	return db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		shift, err := s.repo.GetByID(ctx, shiftID)
		if err != nil {
			return err
		}

		// Re-adding someone already rostered is a no-op.
		for _, existing := range shift.Assignments {
			if existing.ProfileID == a.ProfileID {
				*a = *existing
				return nil
			}
		}

		ws, err := s.workingSet(ctx, shift)
		if err != nil {
			return err
		}
		if err := ws.Assign(a.ProfileID, shiftID); err != nil {
			return mapEngineError(err)
		}

		a.ShiftID = shiftID
		return s.repo.AddAssignment(ctx, a)
	})
}

// RemoveFromRoster takes a roster entry off a shift, returning the staff
// member to the available pool.
func (s *ShiftService) RemoveFromRoster(ctx context.Context, shiftID, assignmentID string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	db := s.repo.DB()
	return db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		shift, err := s.repo.GetByID(ctx, shiftID)
		if err != nil {
			return err
		}

		var profileID string
		for _, existing := range shift.Assignments {
			if existing.ID == assignmentID {
				profileID = existing.ProfileID
				break
			}
		}
		if profileID == "" {
			return errors.NotFound("roster entry")
		}

		ws, err := s.workingSet(ctx, shift)
		if err != nil {
			return err
		}
		if err := ws.Withdraw(shiftID, profileID); err != nil {
			return mapEngineError(err)
		}

		return s.repo.RemoveAssignment(ctx, shiftID, profileID)
	})
}

// UpdateRosterEntry changes an assignment's roles or buddy. The buddy
// must themselves be on the shift.
func (s *ShiftService) UpdateRosterEntry(ctx context.Context, shiftID string, a *repository.Assignment) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	db := s.repo.DB()
	return db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		shift, err := s.repo.GetByID(ctx, shiftID)
		if err != nil {
			return err
		}

		if a.BuddyID != nil {
			found := false
			for _, existing := range shift.Assignments {
				if existing.ProfileID == *a.BuddyID {
					found = true
					break
				}
			}
			if !found {
				return errors.BadRequest("buddy must be rostered on the same shift")
			}
		}

		return s.repo.UpdateAssignment(ctx, a)
	})
}

// workingSet builds the engine state for a shift: the pool holds active
// staff not already rostered; the shift is one multi-occupant slot.
func (s *ShiftService) workingSet(ctx context.Context, shift *repository.Shift) (*assignment.WorkingSet, error) {
	activeIDs, err := s.staff.ActiveIDs(ctx)
	if err != nil {
		return nil, err
	}

	rostered := make(map[string]bool, len(shift.Assignments))
	occupants := make([]string, 0, len(shift.Assignments))
	for _, a := range shift.Assignments {
		rostered[a.ProfileID] = true
		occupants = append(occupants, a.ProfileID)
	}

	pool := make([]string, 0, len(activeIDs))
	for _, id := range activeIDs {
		if !rostered[id] {
			pool = append(pool, id)
		}
	}

	slot := assignment.Slot{ID: shift.ID, Multi: true, Occupants: occupants}
	return assignment.NewWorkingSet(pool, slot), nil
}

func mapEngineError(err error) error {
	switch err {
	case assignment.ErrSlotNotFound:
		return errors.NotFound("slot")
	case assignment.ErrStaffNotFound:
		return errors.BadRequest("staff member is not in the available pool")
	case assignment.ErrSlotEmpty:
		return errors.StateConflict("slot has no occupant")
	}
	return err
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/smokestack/smokestack-backend/pkg/database"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// Shift is one scheduled work period
type Shift struct {
	ID        string    `db:"id" json:"id"`
	StoreID   string    `db:"store_id" json:"store_id"`
	Date      time.Time `db:"date" json:"date"`
	ShiftType string    `db:"shift_type" json:"shift_type"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Assignments []*Assignment `db:"-" json:"assignments,omitempty"`
}

// Assignment places a staff member on a shift with their working roles
type Assignment struct {
	ID             string         `db:"id" json:"id"`
	StoreID        string         `db:"store_id" json:"-"`
	ShiftID        string         `db:"shift_id" json:"shift_id"`
	ProfileID      string         `db:"profile_id" json:"profile_id"`
	PrimaryRole    string         `db:"primary_role" json:"primary_role"`
	SecondaryRoles pq.StringArray `db:"secondary_roles" json:"secondary_roles"`
	BuddyID        *string        `db:"buddy_id" json:"buddy_id,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// ShiftRepository handles shift and roster persistence
type ShiftRepository struct {
	db *database.DB
}

// NewShiftRepository creates a new shift repository
func NewShiftRepository(db *database.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// DB exposes the underlying handle so the service can run several
// repository calls in one store-scoped transaction.
func (r *ShiftRepository) DB() *database.DB {
	return r.db
}

// Create inserts a shift
func (r *ShiftRepository) Create(ctx context.Context, s *Shift) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.StoreID = storeID

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO shifts (id, store_id, date, shift_type, start_time, end_time, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			s.ID, s.StoreID, s.Date, s.ShiftType, s.StartTime, s.EndTime, s.Notes,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}

// GetByID gets a shift with its roster
func (r *ShiftRepository) GetByID(ctx context.Context, id string) (*Shift, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var s Shift
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, date, shift_type, start_time, end_time, notes, created_at, updated_at
			FROM shifts WHERE id = $1
		`
		if err := r.db.GetContext(ctx, &s, query, id); err != nil {
			return err
		}
		return r.db.SelectContext(ctx, &s.Assignments, assignmentSelect+` WHERE shift_id = $1 ORDER BY created_at`, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("shift")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByDate lists the store's shifts for one date with rosters
func (r *ShiftRepository) ListByDate(ctx context.Context, date time.Time) ([]*Shift, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var shifts []*Shift
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, date, shift_type, start_time, end_time, notes, created_at, updated_at
			FROM shifts WHERE date = $1 ORDER BY start_time
		`
		if err := r.db.SelectContext(ctx, &shifts, query, date); err != nil {
			return err
		}
		for _, s := range shifts {
			if err := r.db.SelectContext(ctx, &s.Assignments, assignmentSelect+` WHERE shift_id = $1 ORDER BY created_at`, s.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shifts, nil
}

// Update updates a shift's schedule fields
func (r *ShiftRepository) Update(ctx context.Context, s *Shift) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			UPDATE shifts SET shift_type = $2, start_time = $3, end_time = $4, notes = $5
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query, s.ID, s.ShiftType, s.StartTime, s.EndTime, s.Notes)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("shift")
		}
		return nil
	})
}

// Delete removes a shift and its roster
func (r *ShiftRepository) Delete(ctx context.Context, id string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("shift")
		}
		return nil
	})
}

const assignmentSelect = `
	SELECT id, store_id, shift_id, profile_id, primary_role, secondary_roles, buddy_id, created_at
	FROM shift_assignments`

// AddAssignment places a staff member on a shift
func (r *ShiftRepository) AddAssignment(ctx context.Context, a *Assignment) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.StoreID = storeID
	if a.SecondaryRoles == nil {
		a.SecondaryRoles = pq.StringArray{}
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO shift_assignments (id, store_id, shift_id, profile_id, primary_role, secondary_roles, buddy_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			a.ID, a.StoreID, a.ShiftID, a.ProfileID, a.PrimaryRole, a.SecondaryRoles, a.BuddyID,
		).Scan(&a.CreatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}

// UpdateAssignment changes an assignment's roles or buddy
func (r *ShiftRepository) UpdateAssignment(ctx context.Context, a *Assignment) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if a.SecondaryRoles == nil {
		a.SecondaryRoles = pq.StringArray{}
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			UPDATE shift_assignments SET primary_role = $2, secondary_roles = $3, buddy_id = $4
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query, a.ID, a.PrimaryRole, a.SecondaryRoles, a.BuddyID)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("shift assignment")
		}
		return nil
	})
}

// RemoveAssignment takes a staff member off a shift
func (r *ShiftRepository) RemoveAssignment(ctx context.Context, shiftID, profileID string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`DELETE FROM shift_assignments WHERE shift_id = $1 AND profile_id = $2`, shiftID, profileID)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("shift assignment")
		}
		return nil
	})
}

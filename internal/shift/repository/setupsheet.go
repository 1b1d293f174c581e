package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/smokestack/smokestack-backend/pkg/database"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// SetupSheet is the position plan for one (date, shift type) pair
type SetupSheet struct {
	ID        string    `db:"id" json:"id"`
	StoreID   string    `db:"store_id" json:"store_id"`
	Date      time.Time `db:"date" json:"date"`
	ShiftType string    `db:"shift_type" json:"shift_type"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Positions []*SetupPosition `db:"-" json:"positions,omitempty"`
}

// SetupPosition is one station on a setup sheet holding at most one staff member
type SetupPosition struct {
	ID         string    `db:"id" json:"id"`
	StoreID    string    `db:"store_id" json:"-"`
	SheetID    string    `db:"sheet_id" json:"sheet_id"`
	Name       string    `db:"name" json:"name"`
	Position   int       `db:"position" json:"position"`
	AssignedTo *string   `db:"assigned_to" json:"assigned_to,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SetupSheetRepository handles setup sheet persistence
type SetupSheetRepository struct {
	db *database.DB
}

// NewSetupSheetRepository creates a new setup sheet repository
func NewSetupSheetRepository(db *database.DB) *SetupSheetRepository {
	return &SetupSheetRepository{db: db}
}

// DB exposes the underlying handle so the service can run several
// repository calls in one store-scoped transaction.
func (r *SetupSheetRepository) DB() *database.DB {
	return r.db
}

// Create inserts a setup sheet with its positions. The (date, shift_type)
// pair is unique per store.
func (r *SetupSheetRepository) Create(ctx context.Context, sheet *SetupSheet) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if sheet.ID == "" {
		sheet.ID = uuid.New().String()
	}
	sheet.StoreID = storeID

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO setup_sheets (id, store_id, date, shift_type, notes)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			sheet.ID, sheet.StoreID, sheet.Date, sheet.ShiftType, sheet.Notes,
		).Scan(&sheet.CreatedAt, &sheet.UpdatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}

		for i, pos := range sheet.Positions {
			if pos.ID == "" {
				pos.ID = uuid.New().String()
			}
			pos.StoreID = storeID
			pos.SheetID = sheet.ID
			pos.Position = i
			err := r.db.QueryRowxContext(ctx, `
				INSERT INTO setup_positions (id, store_id, sheet_id, name, position, assigned_to)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING created_at, updated_at
			`, pos.ID, pos.StoreID, pos.SheetID, pos.Name, pos.Position, pos.AssignedTo).
				Scan(&pos.CreatedAt, &pos.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

const positionSelect = `
	SELECT id, store_id, sheet_id, name, position, assigned_to, created_at, updated_at
	FROM setup_positions`

// GetByID gets a setup sheet with its positions
func (r *SetupSheetRepository) GetByID(ctx context.Context, id string) (*SetupSheet, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var sheet SetupSheet
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, date, shift_type, notes, created_at, updated_at
			FROM setup_sheets WHERE id = $1
		`
		if err := r.db.GetContext(ctx, &sheet, query, id); err != nil {
			return err
		}
		return r.db.SelectContext(ctx, &sheet.Positions, positionSelect+` WHERE sheet_id = $1 ORDER BY position`, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("setup sheet")
	}
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

// GetByDateAndShift returns the sheet for a (date, shift type) pair, or
// nil when none exists
func (r *SetupSheetRepository) GetByDateAndShift(ctx context.Context, date time.Time, shiftType string) (*SetupSheet, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var sheet SetupSheet
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, date, shift_type, notes, created_at, updated_at
			FROM setup_sheets WHERE date = $1 AND shift_type = $2
		`
		if err := r.db.GetContext(ctx, &sheet, query, date, shiftType); err != nil {
			return err
		}
		return r.db.SelectContext(ctx, &sheet.Positions, positionSelect+` WHERE sheet_id = $1 ORDER BY position`, sheet.ID)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

// ListByDate lists the day's setup sheets with positions
func (r *SetupSheetRepository) ListByDate(ctx context.Context, date time.Time) ([]*SetupSheet, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var sheets []*SetupSheet
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, date, shift_type, notes, created_at, updated_at
			FROM setup_sheets WHERE date = $1 ORDER BY shift_type
		`
		if err := r.db.SelectContext(ctx, &sheets, query, date); err != nil {
			return err
		}
		for _, sheet := range sheets {
			if err := r.db.SelectContext(ctx, &sheet.Positions, positionSelect+` WHERE sheet_id = $1 ORDER BY position`, sheet.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

// AddPosition appends a station to a sheet
func (r *SetupSheetRepository) AddPosition(ctx context.Context, pos *SetupPosition) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if pos.ID == "" {
		pos.ID = uuid.New().String()
	}
	pos.StoreID = storeID

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO setup_positions (id, store_id, sheet_id, name, position, assigned_to)
			VALUES ($1, $2, $3, $4,
				(SELECT COALESCE(MAX(position), -1) + 1 FROM setup_positions WHERE sheet_id = $3),
				$5)
			RETURNING position, created_at, updated_at
		`
		return r.db.QueryRowxContext(ctx, query,
			pos.ID, pos.StoreID, pos.SheetID, pos.Name, pos.AssignedTo,
		).Scan(&pos.Position, &pos.CreatedAt, &pos.UpdatedAt)
	})
}

// SetPositionAssignee persists a station's occupant (nil clears it)
func (r *SetupSheetRepository) SetPositionAssignee(ctx context.Context, positionID string, profileID *string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE setup_positions SET assigned_to = $2 WHERE id = $1`, positionID, profileID)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("setup position")
		}
		return nil
	})
}

// DeletePosition removes a station from a sheet
func (r *SetupSheetRepository) DeletePosition(ctx context.Context, positionID string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, `DELETE FROM setup_positions WHERE id = $1`, positionID)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("setup position")
		}
		return nil
	})
}

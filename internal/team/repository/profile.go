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

// Profile represents a staff member at a store
type Profile struct {
	ID          string         `db:"id" json:"id"`
	StoreID     string         `db:"store_id" json:"store_id"`
	Email       string         `db:"email" json:"email"`
	FirstName   string         `db:"first_name" json:"first_name"`
	LastName    string         `db:"last_name" json:"last_name"`
	Role        string         `db:"role" json:"role"` // team_member, prep_cook, pitmaster, shift_leader, manager, operator
	PinHash     *string        `db:"pin_hash" json:"-"`
	Permissions pq.StringArray `db:"permissions" json:"permissions"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Store represents a restaurant location
type Store struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Address        *string   `db:"address" json:"address,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Timezone       string    `db:"timezone" json:"timezone"`
	OnboardingStep string    `db:"onboarding_step" json:"onboarding_step"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileRepository handles staff profile persistence
type ProfileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile in the caller's store
func (r *ProfileRepository) Create(ctx context.Context, p *Profile) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.StoreID = storeID
	if p.Role == "" {
		p.Role = "team_member"
	}
	if p.Permissions == nil {
		p.Permissions = pq.StringArray{}
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO profiles (id, store_id, email, first_name, last_name, role, pin_hash, permissions, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			p.ID, p.StoreID, p.Email, p.FirstName, p.LastName, p.Role, p.PinHash, p.Permissions, p.IsActive,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}

// CreateBatch creates several profiles in one transaction. Either every
// row lands or none do.
func (r *ProfileRepository) CreateBatch(ctx context.Context, profiles []*Profile) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		for _, p := range profiles {
			if err := r.Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID gets a profile by ID within the caller's store
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var p Profile
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, email, first_name, last_name, role, pin_hash, permissions, is_active, created_at, updated_at
			FROM profiles WHERE id = $1
		`
		return r.db.GetContext(ctx, &p, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("profile")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List lists the store's profiles, optionally only active ones
func (r *ProfileRepository) List(ctx context.Context, activeOnly bool) ([]*Profile, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var profiles []*Profile
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, email, first_name, last_name, role, pin_hash, permissions, is_active, created_at, updated_at
			FROM profiles
			WHERE ($1 = false OR is_active)
			ORDER BY last_name, first_name
		`
		return r.db.SelectContext(ctx, &profiles, query, activeOnly)
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// ActiveIDs returns the IDs of the store's active profiles. Used by the
// assignment engine to build the available pool.
func (r *ProfileRepository) ActiveIDs(ctx context.Context) ([]string, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `SELECT id FROM profiles WHERE is_active ORDER BY last_name, first_name`
		return r.db.SelectContext(ctx, &ids, query)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Update updates a profile's editable fields
func (r *ProfileRepository) Update(ctx context.Context, p *Profile) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			UPDATE profiles SET
				email = $2, first_name = $3, last_name = $4, role = $5, permissions = $6
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query,
			p.ID, p.Email, p.FirstName, p.LastName, p.Role, p.Permissions,
		)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("profile")
		}
		return nil
	})
}

// SetActive activates or deactivates a profile
func (r *ProfileRepository) SetActive(ctx context.Context, id string, active bool) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE profiles SET is_active = $2 WHERE id = $1`, id, active)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("profile")
		}
		return nil
	})
}

// SetPinHash stores a new kiosk PIN hash for a profile
func (r *ProfileRepository) SetPinHash(ctx context.Context, id string, pinHash string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE profiles SET pin_hash = $2 WHERE id = $1`, id, pinHash)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("profile")
		}
		return nil
	})
}

// ActivePinProfiles returns every active profile with a PIN set, across all
// stores. This is the one deliberate cross-store path (kiosk sign-in); it
// goes through a definer function instead of the RLS transaction.
func (r *ProfileRepository) ActivePinProfiles(ctx context.Context) ([]*Profile, error) {
	var profiles []*Profile
	query := `SELECT id, store_id, email, first_name, last_name, role, pin_hash FROM active_pin_profiles()`
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, err
	}
	return profiles, nil
}

// StoreRepository handles store persistence. Stores are the tenancy root
// and are not themselves under RLS.
type StoreRepository struct {
	db *database.DB
}

// NewStoreRepository creates a new store repository
func NewStoreRepository(db *database.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// GetByID gets a store by ID
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*Store, error) {
	var s Store
	query := `
		SELECT id, name, address, phone, timezone, onboarding_step, created_at, updated_at
		FROM stores WHERE id = $1
	`
	err := r.db.GetContext(ctx, &s, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("store")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create creates a new store
func (r *StoreRepository) Create(ctx context.Context, s *Store) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Timezone == "" {
		s.Timezone = "America/Chicago"
	}
	if s.OnboardingStep == "" {
		s.OnboardingStep = "store_setup"
	}

	query := `
		INSERT INTO stores (id, name, address, phone, timezone, onboarding_step)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		s.ID, s.Name, s.Address, s.Phone, s.Timezone, s.OnboardingStep,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// Update updates a store's profile fields
func (r *StoreRepository) Update(ctx context.Context, s *Store) error {
	query := `
		UPDATE stores SET name = $2, address = $3, phone = $4, timezone = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, s.ID, s.Name, s.Address, s.Phone, s.Timezone)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("store")
	}
	return nil
}

// SetOnboardingStep persists the store's single current-step marker
func (r *StoreRepository) SetOnboardingStep(ctx context.Context, id, step string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE stores SET onboarding_step = $2 WHERE id = $1`, id, step)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("store")
	}
	return nil
}

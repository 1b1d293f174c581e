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

// Invitation statuses
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
	InvitationRevoked  = "revoked"
)

// Invitation represents a pending offer to join a store's team
type Invitation struct {
	ID         string     `db:"id" json:"id"`
	StoreID    string     `db:"store_id" json:"store_id"`
	Email      string     `db:"email" json:"email"`
	FirstName  string     `db:"first_name" json:"first_name"`
	LastName   string     `db:"last_name" json:"last_name"`
	Role       string     `db:"role" json:"role"`
	TokenHash  string     `db:"token_hash" json:"-"`
	Status     string     `db:"status" json:"status"`
	InvitedBy  *string    `db:"invited_by" json:"invited_by,omitempty"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// InvitationRepository handles invitation persistence
type InvitationRepository struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create creates a new invitation in the caller's store
func (r *InvitationRepository) Create(ctx context.Context, inv *Invitation) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.StoreID = storeID
	if inv.Status == "" {
		inv.Status = InvitationPending
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO employee_invitations (id, store_id, email, first_name, last_name, role, token_hash, status, invited_by, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			inv.ID, inv.StoreID, inv.Email, inv.FirstName, inv.LastName,
			inv.Role, inv.TokenHash, inv.Status, inv.InvitedBy, inv.ExpiresAt,
		).Scan(&inv.CreatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}

// GetByID gets an invitation by ID within the caller's store
func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*Invitation, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var inv Invitation
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `SELECT * FROM employee_invitations WHERE id = $1`
		return r.db.GetContext(ctx, &inv, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("invitation")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// PendingByEmail returns the pending invitation for an email, if any
func (r *InvitationRepository) PendingByEmail(ctx context.Context, email string) (*Invitation, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var inv Invitation
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `SELECT * FROM employee_invitations WHERE email = $1 AND status = 'pending' LIMIT 1`
		return r.db.GetContext(ctx, &inv, query, email)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// List lists the store's invitations, newest first
func (r *InvitationRepository) List(ctx context.Context) ([]*Invitation, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var invitations []*Invitation
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `SELECT * FROM employee_invitations ORDER BY created_at DESC`
		return r.db.SelectContext(ctx, &invitations, query)
	})
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// GetByTokenHash looks up an invitation by its token hash. The invitee has
// no store scope yet, so this goes through a definer function rather than
// the RLS transaction.
func (r *InvitationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error) {
	var inv Invitation
	query := `SELECT * FROM invitation_by_token_hash($1)`
	err := r.db.GetContext(ctx, &inv, query, tokenHash)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("invitation")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// SetStatus updates an invitation's status; accepted invitations also
// record the acceptance time.
func (r *InvitationRepository) SetStatus(ctx context.Context, id, status string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			UPDATE employee_invitations
			SET status = $2, accepted_at = CASE WHEN $2 = 'accepted' THEN NOW() ELSE accepted_at END
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query, id, status)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("invitation")
		}
		return nil
	})
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smokestack/smokestack-backend/pkg/database"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// Q-Cash transaction types
const (
	QcashAward       = "award"
	QcashTransferIn  = "transfer_in"
	QcashTransferOut = "transfer_out"
	QcashRedemption  = "redemption"
)

// QcashTransaction is one ledger entry on a staff member's Q-Cash balance
type QcashTransaction struct {
	ID          string    `db:"id" json:"id"`
	StoreID     string    `db:"store_id" json:"store_id"`
	ProfileID   string    `db:"profile_id" json:"profile_id"`
	Amount      int       `db:"amount" json:"amount"`
	Type        string    `db:"transaction_type" json:"transaction_type"`
	Description *string   `db:"description" json:"description,omitempty"`
	AwardedBy   *string   `db:"awarded_by" json:"awarded_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// QcashRepository handles the Q-Cash ledger
type QcashRepository struct {
	db *database.DB
}

// NewQcashRepository creates a new Q-Cash repository
func NewQcashRepository(db *database.DB) *QcashRepository {
	return &QcashRepository{db: db}
}

// Insert appends one ledger entry
func (r *QcashRepository) Insert(ctx context.Context, txn *QcashTransaction) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	txn.StoreID = storeID

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		return r.insertTx(ctx, txn)
	})
}

// InsertPair appends two ledger entries atomically. Used for transfers,
// where the debit and credit must land together. The sender's profile row
// is locked and the balance re-checked inside the transaction so two
// concurrent transfers cannot both pass the sufficiency check and
// overdraw.
func (r *QcashRepository) InsertPair(ctx context.Context, out, in *QcashTransaction) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	for _, txn := range []*QcashTransaction{out, in} {
		if txn.ID == "" {
			txn.ID = uuid.New().String()
		}
		txn.StoreID = storeID
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		var lockedID string
		if err := r.db.GetContext(ctx, &lockedID,
			`SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, out.ProfileID); err != nil {
			return err
		}

		var balance int
		if err := r.db.GetContext(ctx, &balance,
			`SELECT COALESCE(SUM(amount), 0) FROM qcash_transactions WHERE profile_id = $1`, out.ProfileID); err != nil {
			return err
		}
		if balance+out.Amount < 0 {
			return errors.StateConflict("insufficient Q-Cash balance")
		}

		if err := r.insertTx(ctx, out); err != nil {
			return err
		}
		return r.insertTx(ctx, in)
	})
}

func (r *QcashRepository) insertTx(ctx context.Context, txn *QcashTransaction) error {
	query := `
		INSERT INTO qcash_transactions (id, store_id, profile_id, amount, transaction_type, description, awarded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		txn.ID, txn.StoreID, txn.ProfileID, txn.Amount, txn.Type, txn.Description, txn.AwardedBy,
	).Scan(&txn.CreatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// Balance sums a staff member's ledger
func (r *QcashRepository) Balance(ctx context.Context, profileID string) (int, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return 0, err
	}

	var balance int
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `SELECT COALESCE(SUM(amount), 0) FROM qcash_transactions WHERE profile_id = $1`
		return r.db.GetContext(ctx, &balance, query, profileID)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// ListByProfile lists a staff member's ledger entries, newest first
func (r *QcashRepository) ListByProfile(ctx context.Context, profileID string, limit int) ([]*QcashTransaction, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var txns []*QcashTransaction
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, profile_id, amount, transaction_type, description, awarded_by, created_at
			FROM qcash_transactions WHERE profile_id = $1
			ORDER BY created_at DESC LIMIT $2
		`
		return r.db.SelectContext(ctx, &txns, query, profileID, limit)
	})
	if err != nil {
		return nil, err
	}
	return txns, nil
}

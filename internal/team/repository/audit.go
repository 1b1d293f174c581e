package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/smokestack/smokestack-backend/pkg/database"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// AuditLog records an account-level change for later review
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	StoreID    string          `db:"store_id" json:"store_id"`
	ActorID    *string         `db:"actor_id" json:"actor_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   *string         `db:"entity_id" json:"entity_id,omitempty"`
	OldValues  json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	Reason     *string         `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditLogRepository handles audit log persistence
type AuditLogRepository struct {
	db *database.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create appends an audit log entry
func (r *AuditLogRepository) Create(ctx context.Context, entry *AuditLog) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.StoreID = storeID

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO audit_logs (id, store_id, actor_id, action, entity_type, entity_id, old_values, new_values, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`
		return r.db.QueryRowxContext(ctx, query,
			entry.ID, entry.StoreID, entry.ActorID, entry.Action, entry.EntityType,
			entry.EntityID, entry.OldValues, entry.NewValues, entry.Reason,
		).Scan(&entry.CreatedAt)
	})
}

// List lists the store's audit log entries, newest first
func (r *AuditLogRepository) List(ctx context.Context, limit int) ([]*AuditLog, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var entries []*AuditLog
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, actor_id, action, entity_type, entity_id, old_values, new_values, reason, created_at
			FROM audit_logs ORDER BY created_at DESC LIMIT $1
		`
		return r.db.SelectContext(ctx, &entries, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

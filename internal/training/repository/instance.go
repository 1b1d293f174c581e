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

// Training instance statuses as persisted. The expired status is never
// stored; it is computed at read time from expires_at.
const (
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusApproved   = "approved"
	StatusExpired    = "expired"
)

// Instance is one staff member's run through a training program. Tasks
// are snapshotted from the template at assignment time.
type Instance struct {
	ID                  string     `db:"id" json:"id"`
	StoreID             string     `db:"store_id" json:"store_id"`
	TemplateID          string     `db:"template_id" json:"template_id"`
	ProfileID           string     `db:"profile_id" json:"profile_id"`
	Status              string     `db:"status" json:"status"`
	Progress            int        `db:"progress" json:"progress"`
	AssignedBy          *string    `db:"assigned_by" json:"assigned_by,omitempty"`
	StartedAt           *time.Time `db:"started_at" json:"started_at,omitempty"`
	ApprovalRequestedAt *time.Time `db:"approval_requested_at" json:"approval_requested_at,omitempty"`
	ApprovedAt          *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy          *string    `db:"approved_by" json:"approved_by,omitempty"`
	CertificationEarned bool       `db:"certification_earned" json:"certification_earned"`
	ExpiresAt           *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`

	Tasks []*InstanceTask `db:"-" json:"tasks,omitempty"`
}

// InstanceTask is one snapshotted step of an instance
type InstanceTask struct {
	ID          string     `db:"id" json:"id"`
	StoreID     string     `db:"store_id" json:"-"`
	InstanceID  string     `db:"instance_id" json:"instance_id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Position    int        `db:"position" json:"position"`
	IsRequired  bool       `db:"is_required" json:"is_required"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy *string    `db:"completed_by" json:"completed_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// InstanceRepository handles training instance persistence
type InstanceRepository struct {
	db *database.DB
}

// NewInstanceRepository creates a new training instance repository
func NewInstanceRepository(db *database.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// DB exposes the underlying handle so the service can run several
// repository calls in one store-scoped transaction.
func (r *InstanceRepository) DB() *database.DB {
	return r.db
}

// Create inserts an instance with tasks snapshotted from the template.
// The (template, profile) pair is unique.
func (r *InstanceRepository) Create(ctx context.Context, inst *Instance, tasks []*InstanceTask) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	inst.StoreID = storeID
	inst.Status = StatusAssigned

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO training_instances (id, store_id, template_id, profile_id, status, assigned_by, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			inst.ID, inst.StoreID, inst.TemplateID, inst.ProfileID, inst.Status, inst.AssignedBy, inst.ExpiresAt,
		).Scan(&inst.CreatedAt, &inst.UpdatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}

		for i, task := range tasks {
			if task.ID == "" {
				task.ID = uuid.New().String()
			}
			task.StoreID = storeID
			task.InstanceID = inst.ID
			task.Position = i
			err := r.db.QueryRowxContext(ctx, `
				INSERT INTO training_instance_tasks (id, store_id, instance_id, title, description, position, is_required)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING created_at
			`, task.ID, task.StoreID, task.InstanceID, task.Title, task.Description, task.Position, task.IsRequired).
				Scan(&task.CreatedAt)
			if err != nil {
				return err
			}
		}
		inst.Tasks = tasks
		return nil
	})
}

const instanceSelect = `
	SELECT id, store_id, template_id, profile_id, status, progress, assigned_by,
	       started_at, approval_requested_at, approved_at, approved_by, certification_earned, expires_at,
	       created_at, updated_at
	FROM training_instances`

const instanceTaskSelect = `
	SELECT id, store_id, instance_id, title, description, position, is_required,
	       completed_at, completed_by, created_at
	FROM training_instance_tasks`

// GetByID gets an instance with its tasks
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*Instance, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var inst Instance
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &inst, instanceSelect+` WHERE id = $1`, id); err != nil {
			return err
		}
		return r.db.SelectContext(ctx, &inst.Tasks, instanceTaskSelect+` WHERE instance_id = $1 ORDER BY position`, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("training instance")
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListByProfile lists a staff member's training instances with tasks
func (r *InstanceRepository) ListByProfile(ctx context.Context, profileID string) ([]*Instance, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var instances []*Instance
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		if err := r.db.SelectContext(ctx, &instances, instanceSelect+` WHERE profile_id = $1 ORDER BY created_at DESC`, profileID); err != nil {
			return err
		}
		for _, inst := range instances {
			if err := r.db.SelectContext(ctx, &inst.Tasks, instanceTaskSelect+` WHERE instance_id = $1 ORDER BY position`, inst.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instances, nil
}

// GetTask gets one instance task
func (r *InstanceRepository) GetTask(ctx context.Context, taskID string) (*InstanceTask, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var task InstanceTask
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &task, instanceTaskSelect+` WHERE id = $1`, taskID)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("training task")
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// SetTaskCompletion stamps or clears a task's completion
func (r *InstanceRepository) SetTaskCompletion(ctx context.Context, taskID string, completedAt *time.Time, completedBy *string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE training_instance_tasks SET completed_at = $2, completed_by = $3 WHERE id = $1`,
			taskID, completedAt, completedBy)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("training task")
		}
		return nil
	})
}

// UpdateLifecycle persists an instance's status, progress and approval fields
func (r *InstanceRepository) UpdateLifecycle(ctx context.Context, inst *Instance) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			UPDATE training_instances SET
				status = $2, progress = $3, started_at = $4, approval_requested_at = $5,
				approved_at = $6, approved_by = $7, certification_earned = $8, expires_at = $9
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query,
			inst.ID, inst.Status, inst.Progress, inst.StartedAt, inst.ApprovalRequestedAt,
			inst.ApprovedAt, inst.ApprovedBy, inst.CertificationEarned, inst.ExpiresAt,
		)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("training instance")
		}
		return nil
	})
}

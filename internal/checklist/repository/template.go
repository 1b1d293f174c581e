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

// Template represents a reusable checklist definition
type Template struct {
	ID          string    `db:"id" json:"id"`
	StoreID     string    `db:"store_id" json:"store_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	ShiftType   string    `db:"shift_type" json:"shift_type"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Tasks []*TemplateTask `db:"-" json:"tasks,omitempty"`
}

// TemplateTask is one task definition inside a template
type TemplateTask struct {
	ID          string    `db:"id" json:"id"`
	StoreID     string    `db:"store_id" json:"-"`
	TemplateID  string    `db:"template_id" json:"template_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TemplateRepository handles checklist template persistence
type TemplateRepository struct {
	db *database.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *database.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create creates a template with its task definitions
func (r *TemplateRepository) Create(ctx context.Context, tmpl *Template) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if tmpl.ID == "" {
		tmpl.ID = uuid.New().String()
	}
	tmpl.StoreID = storeID
	if tmpl.ShiftType == "" {
		tmpl.ShiftType = "opening"
	}
	tmpl.IsActive = true

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO checklist_templates (id, store_id, name, description, shift_type, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			tmpl.ID, tmpl.StoreID, tmpl.Name, tmpl.Description, tmpl.ShiftType, tmpl.IsActive,
		).Scan(&tmpl.CreatedAt, &tmpl.UpdatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}

		for i, task := range tmpl.Tasks {
			if task.ID == "" {
				task.ID = uuid.New().String()
			}
			task.StoreID = storeID
			task.TemplateID = tmpl.ID
			task.Position = i
			err := r.db.QueryRowxContext(ctx, `
				INSERT INTO checklist_template_tasks (id, store_id, template_id, title, description, position)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING created_at
			`, task.ID, task.StoreID, task.TemplateID, task.Title, task.Description, task.Position).
				Scan(&task.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID gets a template with its tasks
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*Template, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var tmpl Template
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, name, description, shift_type, is_active, created_at, updated_at
			FROM checklist_templates WHERE id = $1
		`
		if err := r.db.GetContext(ctx, &tmpl, query, id); err != nil {
			return err
		}

		taskQuery := `
			SELECT id, store_id, template_id, title, description, position, created_at
			FROM checklist_template_tasks WHERE template_id = $1 ORDER BY position
		`
		return r.db.SelectContext(ctx, &tmpl.Tasks, taskQuery, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("checklist template")
	}
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// List lists the store's active templates
func (r *TemplateRepository) List(ctx context.Context) ([]*Template, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var templates []*Template
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, name, description, shift_type, is_active, created_at, updated_at
			FROM checklist_templates WHERE is_active ORDER BY name
		`
		return r.db.SelectContext(ctx, &templates, query)
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// Deactivate retires a template; existing checklists keep their snapshots
func (r *TemplateRepository) Deactivate(ctx context.Context, id string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE checklist_templates SET is_active = false WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("checklist template")
		}
		return nil
	})
}

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

// Template defines a training program
type Template struct {
	ID                    string         `db:"id" json:"id"`
	StoreID               string         `db:"store_id" json:"store_id"`
	Name                  string         `db:"name" json:"name"`
	Description           *string        `db:"description" json:"description,omitempty"`
	CertificationRequired bool           `db:"certification_required" json:"certification_required"`
	ValidityDays          *int           `db:"validity_days" json:"validity_days,omitempty"`
	RoleRequirements      pq.StringArray `db:"role_requirements" json:"role_requirements"`
	IsActive              bool           `db:"is_active" json:"is_active"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`

	Tasks []*TemplateTask `db:"-" json:"tasks,omitempty"`
}

// TemplateTask is one step in a training program
type TemplateTask struct {
	ID          string    `db:"id" json:"id"`
	StoreID     string    `db:"store_id" json:"-"`
	TemplateID  string    `db:"template_id" json:"template_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Position    int       `db:"position" json:"position"`
	IsRequired  bool      `db:"is_required" json:"is_required"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TemplateRepository handles training template persistence
type TemplateRepository struct {
	db *database.DB
}

// NewTemplateRepository creates a new training template repository
func NewTemplateRepository(db *database.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a template with its task definitions
func (r *TemplateRepository) Create(ctx context.Context, tmpl *Template) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if tmpl.ID == "" {
		tmpl.ID = uuid.New().String()
	}
	tmpl.StoreID = storeID
	tmpl.IsActive = true
	if tmpl.RoleRequirements == nil {
		tmpl.RoleRequirements = pq.StringArray{}
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO training_templates (id, store_id, name, description, certification_required, validity_days, role_requirements, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			tmpl.ID, tmpl.StoreID, tmpl.Name, tmpl.Description,
			tmpl.CertificationRequired, tmpl.ValidityDays, tmpl.RoleRequirements, tmpl.IsActive,
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
				INSERT INTO training_template_tasks (id, store_id, template_id, title, description, position, is_required)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING created_at
			`, task.ID, task.StoreID, task.TemplateID, task.Title, task.Description, task.Position, task.IsRequired).
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
			SELECT id, store_id, name, description, certification_required, validity_days, role_requirements, is_active, created_at, updated_at
			FROM training_templates WHERE id = $1
		`
		if err := r.db.GetContext(ctx, &tmpl, query, id); err != nil {
			return err
		}

		taskQuery := `
			SELECT id, store_id, template_id, title, description, position, is_required, created_at
			FROM training_template_tasks WHERE template_id = $1 ORDER BY position
		`
		return r.db.SelectContext(ctx, &tmpl.Tasks, taskQuery, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("training template")
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
			SELECT id, store_id, name, description, certification_required, validity_days, role_requirements, is_active, created_at, updated_at
			FROM training_templates WHERE is_active ORDER BY name
		`
		return r.db.SelectContext(ctx, &templates, query)
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// Deactivate retires a template; existing instances keep their snapshots
func (r *TemplateRepository) Deactivate(ctx context.Context, id string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE training_templates SET is_active = false WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("training template")
		}
		return nil
	})
}

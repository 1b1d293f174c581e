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

// Checklist is one day's instance of a template
type Checklist struct {
	ID         string     `db:"id" json:"id"`
	StoreID    string     `db:"store_id" json:"store_id"`
	TemplateID string     `db:"template_id" json:"template_id"`
	Date       time.Time  `db:"date" json:"date"`
	Deadline   *time.Time `db:"deadline" json:"deadline,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`

	// Derived, never stored
	Status   string  `db:"-" json:"status,omitempty"`
	Progress int     `db:"-" json:"progress"`
	Tasks    []*Task `db:"-" json:"tasks,omitempty"`
}

// Task is one actionable item on a checklist
type Task struct {
	ID                string     `db:"id" json:"id"`
	StoreID           string     `db:"store_id" json:"-"`
	ChecklistID       string     `db:"checklist_id" json:"checklist_id"`
	Title             string     `db:"title" json:"title"`
	Description       *string    `db:"description" json:"description,omitempty"`
	Position          int        `db:"position" json:"position"`
	Status            string     `db:"status" json:"status"`
	AssignedTo        *string    `db:"assigned_to" json:"assigned_to,omitempty"`
	LastActorID       *string    `db:"last_actor_id" json:"last_actor_id,omitempty"`
	PerformanceRating *string    `db:"performance_rating" json:"performance_rating,omitempty"`
	StartedAt         *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	Comments []*Comment `db:"-" json:"comments,omitempty"`
}

// Comment is an immutable note attached to a task
type Comment struct {
	ID        string    `db:"id" json:"id"`
	StoreID   string    `db:"store_id" json:"-"`
	TaskID    string    `db:"task_id" json:"task_id"`
	AuthorID  *string   `db:"author_id" json:"author_id,omitempty"`
	Type      string    `db:"comment_type" json:"comment_type"` // note, issue, feedback, instruction
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChecklistRepository handles checklist and task persistence
type ChecklistRepository struct {
	db *database.DB
}

// NewChecklistRepository creates a new checklist repository
func NewChecklistRepository(db *database.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// DB exposes the underlying handle so the service can run several
// repository calls in one store-scoped transaction.
func (r *ChecklistRepository) DB() *database.DB {
	return r.db
}

// Create inserts a checklist with task rows snapshotted from a template.
// The (template, date) pair is unique; inserting a duplicate surfaces the
// checklists_template_date constraint.
func (r *ChecklistRepository) Create(ctx context.Context, cl *Checklist, tasks []*Task) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if cl.ID == "" {
		cl.ID = uuid.New().String()
	}
	cl.StoreID = storeID

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO checklists (id, store_id, template_id, date, deadline)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			cl.ID, cl.StoreID, cl.TemplateID, cl.Date, cl.Deadline,
		).Scan(&cl.CreatedAt)
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
			task.ChecklistID = cl.ID
			task.Position = i
			task.Status = "pending"
			err := r.db.QueryRowxContext(ctx, `
				INSERT INTO checklist_tasks (id, store_id, checklist_id, title, description, position, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING created_at, updated_at
			`, task.ID, task.StoreID, task.ChecklistID, task.Title, task.Description, task.Position, task.Status).
				Scan(&task.CreatedAt, &task.UpdatedAt)
			if err != nil {
				return err
			}
		}
		cl.Tasks = tasks
		return nil
	})
}

// GetByTemplateAndDate returns the checklist for a (template, date) pair,
// or nil when none exists. Used for idempotent daily generation.
func (r *ChecklistRepository) GetByTemplateAndDate(ctx context.Context, templateID string, date time.Time) (*Checklist, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var cl Checklist
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, template_id, date, deadline, created_at
			FROM checklists WHERE template_id = $1 AND date = $2
		`
		return r.db.GetContext(ctx, &cl, query, templateID, date)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// GetByID gets a checklist with its tasks, ordered by position
func (r *ChecklistRepository) GetByID(ctx context.Context, id string) (*Checklist, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var cl Checklist
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, template_id, date, deadline, created_at
			FROM checklists WHERE id = $1
		`
		if err := r.db.GetContext(ctx, &cl, query, id); err != nil {
			return err
		}
		return r.db.SelectContext(ctx, &cl.Tasks, taskSelect+` WHERE checklist_id = $1 ORDER BY position`, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("checklist")
	}
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// ListByDate lists the store's checklists for one date
func (r *ChecklistRepository) ListByDate(ctx context.Context, date time.Time) ([]*Checklist, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var checklists []*Checklist
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, template_id, date, deadline, created_at
			FROM checklists WHERE date = $1 ORDER BY created_at
		`
		if err := r.db.SelectContext(ctx, &checklists, query, date); err != nil {
			return err
		}
		for _, cl := range checklists {
			if err := r.db.SelectContext(ctx, &cl.Tasks, taskSelect+` WHERE checklist_id = $1 ORDER BY position`, cl.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checklists, nil
}

const taskSelect = `
	SELECT id, store_id, checklist_id, title, description, position, status,
	       assigned_to, last_actor_id, performance_rating, started_at, completed_at,
	       created_at, updated_at
	FROM checklist_tasks`

// GetTask gets one task
func (r *ChecklistRepository) GetTask(ctx context.Context, taskID string) (*Task, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var task Task
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &task, taskSelect+` WHERE id = $1`, taskID)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("task")
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskState persists a task's state transition fields
func (r *ChecklistRepository) UpdateTaskState(ctx context.Context, task *Task) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			UPDATE checklist_tasks SET
				status = $2, last_actor_id = $3, performance_rating = $4,
				started_at = $5, completed_at = $6
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query,
			task.ID, task.Status, task.LastActorID, task.PerformanceRating,
			task.StartedAt, task.CompletedAt,
		)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("task")
		}
		return nil
	})
}

// SetTaskAssignee persists a task's occupant (nil clears it)
func (r *ChecklistRepository) SetTaskAssignee(ctx context.Context, taskID string, profileID *string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE checklist_tasks SET assigned_to = $2 WHERE id = $1`, taskID, profileID)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("task")
		}
		return nil
	})
}

// AddComment appends an immutable comment to a task
func (r *ChecklistRepository) AddComment(ctx context.Context, c *Comment) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.StoreID = storeID
	if c.Type == "" {
		c.Type = "note"
	}

	return r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			INSERT INTO task_comments (id, store_id, task_id, author_id, comment_type, body)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			c.ID, c.StoreID, c.TaskID, c.AuthorID, c.Type, c.Body,
		).Scan(&c.CreatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}

// ListComments lists a task's comments oldest first
func (r *ChecklistRepository) ListComments(ctx context.Context, taskID string) ([]*Comment, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	var comments []*Comment
	err = r.db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		query := `
			SELECT id, store_id, task_id, author_id, comment_type, body, created_at
			FROM task_comments WHERE task_id = $1 ORDER BY created_at
		`
		return r.db.SelectContext(ctx, &comments, query, taskID)
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

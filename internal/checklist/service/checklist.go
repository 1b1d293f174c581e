package service

import (
	"context"
	"time"

	"github.com/smokestack/smokestack-backend/internal/assignment"
	"github.com/smokestack/smokestack-backend/internal/checklist/domain"
	"github.com/smokestack/smokestack-backend/internal/checklist/events"
	"github.com/smokestack/smokestack-backend/internal/checklist/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// StaffPool supplies the IDs of staff who can be assigned work. Satisfied
// by the team module's profile repository.
type StaffPool interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// ChecklistService handles checklist business logic
type ChecklistService struct {
	checklistRepo *repository.ChecklistRepository
	templateRepo  *repository.TemplateRepository
	staff         StaffPool
	publisher     *events.ChecklistEventPublisher
	logger        *logger.Logger
}

// NewChecklistService creates a new checklist service
func NewChecklistService(
	checklistRepo *repository.ChecklistRepository,
	templateRepo *repository.TemplateRepository,
	staff StaffPool,
	publisher *events.ChecklistEventPublisher,
	log *logger.Logger,
) *ChecklistService {
	return &ChecklistService{
		checklistRepo: checklistRepo,
		templateRepo:  templateRepo,
		staff:         staff,
		publisher:     publisher,
		logger:        log,
	}
}

// GenerateDaily creates the day's checklist from a template. Generation is
// idempotent: if a checklist already exists for the (template, date) pair
// the existing one is returned untouched.
func (s *ChecklistService) GenerateDaily(ctx context.Context, templateID string, date time.Time, deadline *time.Time) (*repository.Checklist, error) {
	existing, err := s.checklistRepo.GetByTemplateAndDate(ctx, templateID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.GetByID(ctx, existing.ID)
	}

	tmpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsActive {
		return nil, errors.StateConflict("template is no longer active")
	}

	cl := &repository.Checklist{
		TemplateID: templateID,
		Date:       date,
		Deadline:   deadline,
	}
	tasks := make([]*repository.Task, 0, len(tmpl.Tasks))
	for _, tt := range tmpl.Tasks {
		tasks = append(tasks, &repository.Task{
			Title:       tt.Title,
			Description: tt.Description,
		})
	}

	if err := s.checklistRepo.Create(ctx, cl, tasks); err != nil {
		// A concurrent generation can win the race; surface the winner.
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == "CONFLICT" {
			if existing, getErr := s.checklistRepo.GetByTemplateAndDate(ctx, templateID, date); getErr == nil && existing != nil {
				return s.GetByID(ctx, existing.ID)
			}
		}
		return nil, err
	}

	s.decorate(cl)
	return cl, nil
}

// GetByID gets a checklist with derived status and progress
func (s *ChecklistService) GetByID(ctx context.Context, id string) (*repository.Checklist, error) {
	cl, err := s.checklistRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorate(cl)
	return cl, nil
}

// ListByDate lists the day's checklists with derived status and progress
func (s *ChecklistService) ListByDate(ctx context.Context, date time.Time) ([]*repository.Checklist, error) {
	checklists, err := s.checklistRepo.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, cl := range checklists {
		s.decorate(cl)
	}
	return checklists, nil
}

// TransitionInput describes one task state transition
type TransitionInput struct {
	TaskID  string
	To      string
	Rating  *string
	Comment *repository.Comment
}

// Transition moves a task through its state machine. The acting staff
// member is recorded as last_actor_id on every transition; started_at is
// stamped when work begins and completed_at plus the optional rating when
// it finishes. A rating is only accepted, and only kept, on completion.
func (s *ChecklistService) Transition(ctx context.Context, in TransitionInput) (*repository.Task, error) {
	task, err := s.checklistRepo.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(task.Status, in.To) {
		return nil, errors.InvalidStateTransition(task.Status, in.To)
	}
	if in.Rating != nil {
		if in.To != domain.StatusCompleted {
			return nil, errors.BadRequest("a performance rating is only accepted when completing a task")
		}
		if !domain.ValidRating(*in.Rating) {
			return nil, errors.Validation(map[string]string{
				"performance_rating": "must be one of: below_expectations, met_expectations, exceeded_expectations",
			})
		}
	}

	actorID, _ := storectx.ProfileID(ctx)
	now := time.Now().UTC()

	task.Status = in.To
	task.LastActorID = &actorID
	switch in.To {
	case domain.StatusInProgress:
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
		task.CompletedAt = nil
		task.PerformanceRating = nil
	case domain.StatusCompleted:
		task.CompletedAt = &now
		task.PerformanceRating = in.Rating
	case domain.StatusPending, domain.StatusSkipped:
		task.CompletedAt = nil
		task.PerformanceRating = nil
	}

	db := s.checklistRepo.DB()
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}
	err = db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		if err := s.checklistRepo.UpdateTaskState(ctx, task); err != nil {
			return err
		}
		if in.Comment != nil {
			in.Comment.TaskID = task.ID
			in.Comment.AuthorID = &actorID
			return s.checklistRepo.AddComment(ctx, in.Comment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.To == domain.StatusCompleted {
		s.maybePublishCompleted(ctx, task.ChecklistID)
	}
	return task, nil
}

// AssignTask assigns a staff member to a task through the move engine.
// The working set is rebuilt from authoritative state and both sides are
// persisted inside one store-scoped transaction.
func (s *ChecklistService) AssignTask(ctx context.Context, checklistID, taskID, profileID string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	db := s.checklistRepo.DB()
	return db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		cl, err := s.checklistRepo.GetByID(ctx, checklistID)
		if err != nil {
			return err
		}

		ws, err := s.workingSet(ctx, cl)
		if err != nil {
			return err
		}

		if err := ws.Assign(profileID, taskID); err != nil {
			return mapEngineError(err)
		}

		return s.persistAssignments(ctx, cl, ws)
	})
}

// UnassignTask clears a task's assignee, returning them to the pool
func (s *ChecklistService) UnassignTask(ctx context.Context, checklistID, taskID string) error {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return err
	}

	db := s.checklistRepo.DB()
	return db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		cl, err := s.checklistRepo.GetByID(ctx, checklistID)
		if err != nil {
			return err
		}

		ws, err := s.workingSet(ctx, cl)
		if err != nil {
			return err
		}

		if _, err := ws.Unassign(taskID); err != nil {
			return mapEngineError(err)
		}

		return s.persistAssignments(ctx, cl, ws)
	})
}

// AddComment appends an immutable comment to a task
func (s *ChecklistService) AddComment(ctx context.Context, c *repository.Comment) error {
	actorID, _ := storectx.ProfileID(ctx)
	c.AuthorID = &actorID
	return s.checklistRepo.AddComment(ctx, c)
}

// ListComments lists a task's comments
func (s *ChecklistService) ListComments(ctx context.Context, taskID string) ([]*repository.Comment, error) {
	return s.checklistRepo.ListComments(ctx, taskID)
}

// workingSet builds the engine state for a checklist: the pool holds
// active staff not currently assigned on this checklist; each task is a
// single-occupant slot.
func (s *ChecklistService) workingSet(ctx context.Context, cl *repository.Checklist) (*assignment.WorkingSet, error) {
	activeIDs, err := s.staff.ActiveIDs(ctx)
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]bool)
	slots := make([]assignment.Slot, 0, len(cl.Tasks))
	for _, task := range cl.Tasks {
		slot := assignment.Slot{ID: task.ID}
		if task.AssignedTo != nil {
			slot.Occupants = []string{*task.AssignedTo}
			assigned[*task.AssignedTo] = true
		}
		slots = append(slots, slot)
	}

	pool := make([]string, 0, len(activeIDs))
	for _, id := range activeIDs {
		if !assigned[id] {
			pool = append(pool, id)
		}
	}

	return assignment.NewWorkingSet(pool, slots...), nil
}

// persistAssignments writes every task's occupant back from the engine
// state. Runs inside the caller's transaction.
func (s *ChecklistService) persistAssignments(ctx context.Context, cl *repository.Checklist, ws *assignment.WorkingSet) error {
	for _, task := range cl.Tasks {
		occ, err := ws.Occupants(task.ID)
		if err != nil {
			return err
		}

		var want *string
		if len(occ) > 0 {
			want = &occ[0]
		}

		if !sameAssignee(task.AssignedTo, want) {
			if err := s.checklistRepo.SetTaskAssignee(ctx, task.ID, want); err != nil {
				return err
			}
		}
	}
	return nil
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mapEngineError(err error) error {
	switch err {
	case assignment.ErrSlotNotFound:
		return errors.NotFound("slot")
	case assignment.ErrStaffNotFound:
		return errors.BadRequest("staff member is not in the available pool")
	case assignment.ErrSlotEmpty:
		return errors.StateConflict("slot has no occupant")
	}
	return err
}

// decorate computes the derived status and progress for a checklist
func (s *ChecklistService) decorate(cl *repository.Checklist) {
	statuses := make([]string, 0, len(cl.Tasks))
	for _, task := range cl.Tasks {
		statuses = append(statuses, task.Status)
	}
	cl.Status = domain.DeriveStatus(statuses, cl.Deadline, time.Now().UTC())
	cl.Progress = domain.Progress(statuses)
}

// maybePublishCompleted publishes the completion event when every task on
// the checklist has reached a terminal state.
func (s *ChecklistService) maybePublishCompleted(ctx context.Context, checklistID string) {
	cl, err := s.GetByID(ctx, checklistID)
	if err != nil {
		s.logger.Error().Err(err).Str("checklist_id", checklistID).Msg("failed to refetch checklist after completion")
		return
	}
	if cl.Status != domain.ChecklistCompleted {
		return
	}

	tmpl, err := s.templateRepo.GetByID(ctx, cl.TemplateID)
	templateName := ""
	if err == nil {
		templateName = tmpl.Name
	}

	s.publisher.PublishChecklistCompleted(ctx, messaging.ChecklistCompletedPayload{
		ChecklistID:  cl.ID,
		TemplateID:   cl.TemplateID,
		TemplateName: templateName,
		Date:         cl.Date.Format("2006-01-02"),
		Progress:     cl.Progress,
	})
}

package service

import (
	"context"
	"math"
	"time"

	"github.com/smokestack/smokestack-backend/internal/training/events"
	"github.com/smokestack/smokestack-backend/internal/training/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
	"github.com/smokestack/smokestack-backend/pkg/permissions"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// TrainingService handles the training lifecycle
type TrainingService struct {
	templateRepo *repository.TemplateRepository
	instanceRepo *repository.InstanceRepository
	publisher    *events.TrainingEventPublisher
	logger       *logger.Logger
	now          func() time.Time
}

// NewTrainingService creates a new training service
func NewTrainingService(
	templateRepo *repository.TemplateRepository,
	instanceRepo *repository.InstanceRepository,
	publisher *events.TrainingEventPublisher,
	log *logger.Logger,
) *TrainingService {
	return &TrainingService{
		templateRepo: templateRepo,
		instanceRepo: instanceRepo,
		publisher:    publisher,
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateTemplate creates a training program. Restricted to leaders.
func (s *TrainingService) CreateTemplate(ctx context.Context, tmpl *repository.Template) (*repository.Template, error) {
	if !permissions.IsLeader(storectx.Role(ctx)) {
		return nil, errors.Forbidden("only leaders can manage training programs")
	}
	if len(tmpl.Tasks) == 0 {
		return nil, errors.Validation(map[string]string{"tasks": "a training program needs at least one task"})
	}
	if tmpl.CertificationRequired && tmpl.ValidityDays != nil && *tmpl.ValidityDays <= 0 {
		return nil, errors.Validation(map[string]string{"validity_days": "must be a positive number of days"})
	}

	if err := s.templateRepo.Create(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// GetTemplate gets a training program with its tasks
func (s *TrainingService) GetTemplate(ctx context.Context, id string) (*repository.Template, error) {
	return s.templateRepo.GetByID(ctx, id)
}

// ListTemplates lists the store's active training programs
func (s *TrainingService) ListTemplates(ctx context.Context) ([]*repository.Template, error) {
	return s.templateRepo.List(ctx)
}

// DeactivateTemplate retires a training program. Restricted to leaders.
func (s *TrainingService) DeactivateTemplate(ctx context.Context, id string) error {
	if !permissions.IsLeader(storectx.Role(ctx)) {
		return errors.Forbidden("only leaders can manage training programs")
	}
	return s.templateRepo.Deactivate(ctx, id)
}

// Assign starts a staff member on a training program, snapshotting the
// template's tasks so later template edits never change work in flight.
// An optional deadline makes the instance read as expired once it passes.
func (s *TrainingService) Assign(ctx context.Context, templateID, profileID string, expiresAt *time.Time) (*repository.Instance, error) {
	if !permissions.IsLeader(storectx.Role(ctx)) {
		return nil, errors.Forbidden("only leaders can assign training")
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, errors.Validation(map[string]string{"expires_at": "must be in the future"})
	}

	tmpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsActive {
		return nil, errors.StateConflict("training program is no longer active")
	}

	actorID, _ := storectx.ProfileID(ctx)
	inst := &repository.Instance{
		TemplateID: templateID,
		ProfileID:  profileID,
		AssignedBy: &actorID,
		ExpiresAt:  expiresAt,
	}
	tasks := make([]*repository.InstanceTask, 0, len(tmpl.Tasks))
	for _, tt := range tmpl.Tasks {
		tasks = append(tasks, &repository.InstanceTask{
			Title:       tt.Title,
			Description: tt.Description,
			IsRequired:  tt.IsRequired,
		})
	}

	if err := s.instanceRepo.Create(ctx, inst, tasks); err != nil {
		return nil, err
	}
	return inst, nil
}

// GetInstance gets an instance with its effective status
func (s *TrainingService) GetInstance(ctx context.Context, id string) (*repository.Instance, error) {
	inst, err := s.instanceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inst.Status = s.effectiveStatus(inst)
	return inst, nil
}

// ListByProfile lists a staff member's training with effective statuses
func (s *TrainingService) ListByProfile(ctx context.Context, profileID string) ([]*repository.Instance, error) {
	instances, err := s.instanceRepo.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		inst.Status = s.effectiveStatus(inst)
	}
	return instances, nil
}

// CompleteTask marks one training task done and recomputes the
// instance's progress. The first completed task moves the instance from
// assigned to in_progress; reaching completed is the trainee's explicit
// RequestApproval call, not a side effect of the last task.
func (s *TrainingService) CompleteTask(ctx context.Context, instanceID, taskID string) (*repository.Instance, error) {
	storeID, err := storectx.StoreID(ctx)
	if err != nil {
		return nil, err
	}
	actorID, _ := storectx.ProfileID(ctx)

	var inst *repository.Instance
	db := s.instanceRepo.DB()
	err = db.WithStoreRLS(ctx, storeID, func(ctx context.Context) error {
		inst, err = s.instanceRepo.GetByID(ctx, instanceID)
		if err != nil {
			return err
		}

		switch s.effectiveStatus(inst) {
		case repository.StatusApproved:
			return errors.StateConflict("approved training can no longer be changed")
		case repository.StatusExpired:
			return errors.StateConflict("expired training must be reassigned")
		}

		var task *repository.InstanceTask
		for _, t := range inst.Tasks {
			if t.ID == taskID {
				task = t
				break
			}
		}
		if task == nil {
			return errors.NotFound("training task")
		}
		if task.CompletedAt != nil {
			return nil
		}

		now := s.now()
		if err := s.instanceRepo.SetTaskCompletion(ctx, taskID, &now, &actorID); err != nil {
			return err
		}
		task.CompletedAt = &now
		task.CompletedBy = &actorID

		inst.Progress = progress(inst.Tasks)
		if inst.Status == repository.StatusAssigned {
			inst.Status = repository.StatusInProgress
			inst.StartedAt = &now
		}
		return s.instanceRepo.UpdateLifecycle(ctx, inst)
	})
	if err != nil {
		return nil, err
	}

	inst.Status = s.effectiveStatus(inst)
	return inst, nil
}

// RequestApproval moves training from in_progress to completed and
// stamps the request for a leader to sign off. Every required task must
// be done first; optional tasks may be left undone.
func (s *TrainingService) RequestApproval(ctx context.Context, instanceID string) (*repository.Instance, error) {
	inst, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	status := s.effectiveStatus(inst)
	if status != repository.StatusInProgress {
		return nil, errors.InvalidStateTransition(status, repository.StatusCompleted)
	}
	for _, task := range inst.Tasks {
		if task.IsRequired && task.CompletedAt == nil {
			return nil, errors.StateConflict("all required tasks must be completed before requesting approval")
		}
	}

	now := s.now()
	inst.Status = repository.StatusCompleted
	inst.ApprovalRequestedAt = &now
	if err := s.instanceRepo.UpdateLifecycle(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Approve signs off completed training. Leaders only; approving twice
// fails; certification and expiry come from the template.
func (s *TrainingService) Approve(ctx context.Context, instanceID string) (*repository.Instance, error) {
	if !permissions.IsLeader(storectx.Role(ctx)) {
		return nil, errors.Forbidden("only leaders can approve training")
	}

	inst, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	status := s.effectiveStatus(inst)
	if status != repository.StatusCompleted {
		return nil, errors.InvalidStateTransition(status, repository.StatusApproved)
	}

	tmpl, err := s.templateRepo.GetByID(ctx, inst.TemplateID)
	if err != nil {
		return nil, err
	}

	actorID, _ := storectx.ProfileID(ctx)
	now := s.now()
	inst.Status = repository.StatusApproved
	inst.ApprovedAt = &now
	inst.ApprovedBy = &actorID
	inst.CertificationEarned = tmpl.CertificationRequired
	if tmpl.CertificationRequired && tmpl.ValidityDays != nil {
		expires := now.AddDate(0, 0, *tmpl.ValidityDays)
		inst.ExpiresAt = &expires
	}

	if err := s.instanceRepo.UpdateLifecycle(ctx, inst); err != nil {
		return nil, err
	}

	payload := messaging.TrainingApprovedPayload{
		InstanceID:          inst.ID,
		TemplateID:          inst.TemplateID,
		ProfileID:           inst.ProfileID,
		ApprovedBy:          actorID,
		CertificationEarned: inst.CertificationEarned,
	}
	if inst.ExpiresAt != nil {
		payload.ExpiresAt = inst.ExpiresAt.Format(time.RFC3339)
	}
	s.publisher.PublishTrainingApproved(ctx, payload)

	return inst, nil
}

// effectiveStatus applies read-time expiry: any persisted state except
// approved reads as expired once expires_at passes.
func (s *TrainingService) effectiveStatus(inst *repository.Instance) string {
	if inst.Status == repository.StatusApproved {
		return inst.Status
	}
	if inst.ExpiresAt != nil && inst.ExpiresAt.Before(s.now()) {
		return repository.StatusExpired
	}
	return inst.Status
}

func progress(tasks []*repository.InstanceTask) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.CompletedAt != nil {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}

package service

import (
	"context"

	"github.com/smokestack/smokestack-backend/internal/checklist/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/permissions"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

// TemplateService handles checklist template business logic
type TemplateService struct {
	repo   *repository.TemplateRepository
	logger *logger.Logger
}

// NewTemplateService creates a new template service
func NewTemplateService(repo *repository.TemplateRepository, log *logger.Logger) *TemplateService {
	return &TemplateService{repo: repo, logger: log}
}

// Create creates a checklist template with its task definitions.
// Restricted to leaders.
func (s *TemplateService) Create(ctx context.Context, tmpl *repository.Template) (*repository.Template, error) {
	if !permissions.IsLeader(storectx.Role(ctx)) {
		return nil, errors.Forbidden("only leaders can manage checklist templates")
	}
	if len(tmpl.Tasks) == 0 {
		return nil, errors.Validation(map[string]string{"tasks": "a template needs at least one task"})
	}

	if err := s.repo.Create(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// GetByID gets a template with its tasks
func (s *TemplateService) GetByID(ctx context.Context, id string) (*repository.Template, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists the store's active templates
func (s *TemplateService) List(ctx context.Context) ([]*repository.Template, error) {
	return s.repo.List(ctx)
}

// Deactivate retires a template. Existing checklists generated from it
// are unaffected. Restricted to leaders.
func (s *TemplateService) Deactivate(ctx context.Context, id string) error {
	if !permissions.IsLeader(storectx.Role(ctx)) {
		return errors.Forbidden("only leaders can manage checklist templates")
	}
	return s.repo.Deactivate(ctx, id)
}

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"

	"github.com/smokestack/smokestack-backend/internal/training/repository"
	"github.com/smokestack/smokestack-backend/internal/training/service"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// TrainingHandler handles training endpoints
type TrainingHandler struct {
	service *service.TrainingService
	logger  *logger.Logger
}

// NewTrainingHandler creates a new training handler
func NewTrainingHandler(svc *service.TrainingService, log *logger.Logger) *TrainingHandler {
	return &TrainingHandler{
		service: svc,
		logger:  log,
	}
}

// TrainingTaskRequest is one step definition in a template request
type TrainingTaskRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
	IsRequired  *bool   `json:"is_required"`
}

// CreateTemplateRequest is the request structure for creating a training program
type CreateTemplateRequest struct {
	Name                  string                `json:"name" validate:"required,max=255"`
	Description           *string               `json:"description"`
	CertificationRequired bool                  `json:"certification_required"`
	ValidityDays          *int                  `json:"validity_days" validate:"omitempty,min=1"`
	RoleRequirements      []string              `json:"role_requirements" validate:"dive,oneof=team_member prep_cook pitmaster shift_leader manager operator"`
	Tasks                 []TrainingTaskRequest `json:"tasks" validate:"required,min=1,dive"`
}

// CreateTemplate creates a training program
func (h *TrainingHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	tmpl := &repository.Template{
		Name:                  req.Name,
		Description:           req.Description,
		CertificationRequired: req.CertificationRequired,
		ValidityDays:          req.ValidityDays,
		RoleRequirements:      pq.StringArray(req.RoleRequirements),
	}
	for _, t := range req.Tasks {
		required := true
		if t.IsRequired != nil {
			required = *t.IsRequired
		}
		tmpl.Tasks = append(tmpl.Tasks, &repository.TemplateTask{
			Title:       t.Title,
			Description: t.Description,
			IsRequired:  required,
		})
	}

	created, err := h.service.CreateTemplate(r.Context(), tmpl)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, created)
}

// GetTemplate gets a training program
func (h *TrainingHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tmpl, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tmpl)
}

// ListTemplates lists the store's active training programs
func (h *TrainingHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, templates)
}

// DeactivateTemplate retires a training program
func (h *TrainingHandler) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeactivateTemplate(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// AssignRequest is the request structure for assigning training
type AssignRequest struct {
	TemplateID string     `json:"template_id" validate:"required,uuid"`
	ProfileID  string     `json:"profile_id" validate:"required,uuid"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Assign starts a staff member on a training program
func (h *TrainingHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	inst, err := h.service.Assign(r.Context(), req.TemplateID, req.ProfileID, req.ExpiresAt)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, inst)
}

// GetInstance gets a training instance with its effective status
func (h *TrainingHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inst, err := h.service.GetInstance(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inst)
}

// ListByProfile lists a staff member's training
func (h *TrainingHandler) ListByProfile(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")

	instances, err := h.service.ListByProfile(r.Context(), profileID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, instances)
}

// CompleteTask marks one training task done
func (h *TrainingHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "id")
	taskID := chi.URLParam(r, "taskID")

	inst, err := h.service.CompleteTask(r.Context(), instanceID, taskID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inst)
}

// RequestApproval asks a leader to sign off on the training
func (h *TrainingHandler) RequestApproval(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inst, err := h.service.RequestApproval(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inst)
}

// Approve signs off completed training
func (h *TrainingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inst, err := h.service.Approve(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inst)
}

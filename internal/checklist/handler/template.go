package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smokestack/smokestack-backend/internal/checklist/repository"
	"github.com/smokestack/smokestack-backend/internal/checklist/service"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// TemplateHandler handles checklist template endpoints
type TemplateHandler struct {
	service *service.TemplateService
	logger  *logger.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(svc *service.TemplateService, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{
		service: svc,
		logger:  log,
	}
}

// TemplateTaskRequest is one task definition in a template request
type TemplateTaskRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description"`
}

// CreateTemplateRequest is the request structure for creating a template
type CreateTemplateRequest struct {
	Name        string                `json:"name" validate:"required,max=200"`
	Description *string               `json:"description"`
	ShiftType   string                `json:"shift_type" validate:"required,oneof=opening lunch dinner closing all_day"`
	Tasks       []TemplateTaskRequest `json:"tasks" validate:"required,min=1,dive"`
}

// Create creates a checklist template
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		Name:        req.Name,
		Description: req.Description,
		ShiftType:   req.ShiftType,
	}
	for _, t := range req.Tasks {
		tmpl.Tasks = append(tmpl.Tasks, &repository.TemplateTask{
			Title:       t.Title,
			Description: t.Description,
		})
	}

	created, err := h.service.Create(r.Context(), tmpl)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, created)
}

// Get gets a template by ID
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tmpl, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tmpl)
}

// List lists the store's active templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, templates)
}

// Deactivate retires a template
func (h *TemplateHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

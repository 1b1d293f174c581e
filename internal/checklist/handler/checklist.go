package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smokestack/smokestack-backend/internal/checklist/repository"
	"github.com/smokestack/smokestack-backend/internal/checklist/service"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// ChecklistHandler handles checklist and task endpoints
type ChecklistHandler struct {
	service *service.ChecklistService
	logger  *logger.Logger
}

// NewChecklistHandler creates a new checklist handler
func NewChecklistHandler(svc *service.ChecklistService, log *logger.Logger) *ChecklistHandler {
	return &ChecklistHandler{
		service: svc,
		logger:  log,
	}
}

// GenerateRequest is the request structure for daily generation
type GenerateRequest struct {
	TemplateID string     `json:"template_id" validate:"required,uuid"`
	Date       string     `json:"date" validate:"required,datetime=2006-01-02"`
	Deadline   *time.Time `json:"deadline"`
}

// Generate creates the day's checklist from a template
func (h *ChecklistHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	cl, err := h.service.GenerateDaily(r.Context(), req.TemplateID, date, req.Deadline)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, cl)
}

// Get gets a checklist with tasks, derived status and progress
func (h *ChecklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cl, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, cl)
}

// ListByDate lists the checklists for a date (?date=YYYY-MM-DD, default today)
func (h *ChecklistHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	checklists, err := h.service.ListByDate(r.Context(), date)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, checklists)
}

// TransitionRequest is the request structure for a task state transition
type TransitionRequest struct {
	Status  string  `json:"status" validate:"required,oneof=pending in_progress completed skipped"`
	Rating  *string `json:"performance_rating"`
	Comment *string `json:"comment"`
}

// Transition moves a task through its state machine
func (h *ChecklistHandler) Transition(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req TransitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.TransitionInput{
		TaskID: taskID,
		To:     req.Status,
		Rating: req.Rating,
	}
	if req.Comment != nil && *req.Comment != "" {
		in.Comment = &repository.Comment{
			Type: "note",
			Body: *req.Comment,
		}
	}

	task, err := h.service.Transition(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, task)
}

// AssignRequest is the request structure for assigning a task
type AssignRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid"`
}

// Assign assigns a staff member to a task
func (h *ChecklistHandler) Assign(w http.ResponseWriter, r *http.Request) {
	checklistID := chi.URLParam(r, "id")
	taskID := chi.URLParam(r, "taskID")

	var req AssignRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.AssignTask(r.Context(), checklistID, taskID, req.ProfileID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Unassign clears a task's assignee
func (h *ChecklistHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	checklistID := chi.URLParam(r, "id")
	taskID := chi.URLParam(r, "taskID")

	if err := h.service.UnassignTask(r.Context(), checklistID, taskID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// CommentRequest is the request structure for adding a task comment
type CommentRequest struct {
	Type string `json:"comment_type" validate:"required,oneof=note issue feedback instruction"`
	Body string `json:"body" validate:"required,max=2000"`
}

// AddComment appends a comment to a task
func (h *ChecklistHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req CommentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	comment := &repository.Comment{
		TaskID: taskID,
		Type:   req.Type,
		Body:   req.Body,
	}
	if err := h.service.AddComment(r.Context(), comment); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, comment)
}

// ListComments lists a task's comments
func (h *ChecklistHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	comments, err := h.service.ListComments(r.Context(), taskID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, comments)
}

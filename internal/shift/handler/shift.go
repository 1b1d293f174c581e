package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"

	"github.com/smokestack/smokestack-backend/internal/shift/repository"
	"github.com/smokestack/smokestack-backend/internal/shift/service"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// ShiftHandler handles shift scheduling endpoints
type ShiftHandler struct {
	service *service.ShiftService
	logger  *logger.Logger
}

// NewShiftHandler creates a new shift handler
func NewShiftHandler(svc *service.ShiftService, log *logger.Logger) *ShiftHandler {
	return &ShiftHandler{
		service: svc,
		logger:  log,
	}
}

// CreateShiftRequest is the request structure for scheduling a shift
type CreateShiftRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	ShiftType string  `json:"shift_type" validate:"required,oneof=opening lunch dinner closing all_day"`
	StartTime string  `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string  `json:"end_time" validate:"omitempty,datetime=15:04"`
	Notes     *string `json:"notes"`
}

// Create schedules a shift
func (h *ShiftHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateShiftRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	shift, err := h.service.Create(r.Context(), service.CreateShiftInput{
		Date:      date,
		ShiftType: req.ShiftType,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, shift)
}

// Get gets a shift with its roster
func (h *ShiftHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	shift, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, shift)
}

// ListByDate lists the shifts for a date (?date=YYYY-MM-DD, default today)
func (h *ShiftHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	shifts, err := h.service.ListByDate(r.Context(), date)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, shifts)
}

// UpdateShiftRequest is the request structure for rescheduling a shift
type UpdateShiftRequest struct {
	ShiftType string  `json:"shift_type" validate:"required,oneof=opening lunch dinner closing all_day"`
	StartTime string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string  `json:"end_time" validate:"required,datetime=15:04"`
	Notes     *string `json:"notes"`
}

// Update changes a shift's schedule
func (h *ShiftHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateShiftRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	shift := &repository.Shift{
		ID:        id,
		ShiftType: req.ShiftType,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
	}
	if err := h.service.Update(r.Context(), shift); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Delete removes a shift
func (h *ShiftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// RosterRequest is the request structure for adding a staff member to a shift
type RosterRequest struct {
	ProfileID      string   `json:"profile_id" validate:"required,uuid"`
	PrimaryRole    string   `json:"primary_role" validate:"required,max=30"`
	SecondaryRoles []string `json:"secondary_roles"`
	BuddyID        *string  `json:"buddy_id" validate:"omitempty,uuid"`
}

// AddToRoster places a staff member on a shift
func (h *ShiftHandler) AddToRoster(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "id")

	var req RosterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	a := &repository.Assignment{
		ProfileID:      req.ProfileID,
		PrimaryRole:    req.PrimaryRole,
		SecondaryRoles: pq.StringArray(req.SecondaryRoles),
		BuddyID:        req.BuddyID,
	}
	if err := h.service.AddToRoster(r.Context(), shiftID, a); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, a)
}

// RemoveFromRoster takes a roster entry off a shift
func (h *ShiftHandler) RemoveFromRoster(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "id")
	assignmentID := chi.URLParam(r, "assignmentID")

	if err := h.service.RemoveFromRoster(r.Context(), shiftID, assignmentID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// UpdateRosterRequest is the request structure for changing a roster entry
type UpdateRosterRequest struct {
	PrimaryRole    string   `json:"primary_role" validate:"required,max=30"`
	SecondaryRoles []string `json:"secondary_roles"`
	BuddyID        *string  `json:"buddy_id" validate:"omitempty,uuid"`
}

// UpdateRosterEntry changes an assignment's roles or buddy
func (h *ShiftHandler) UpdateRosterEntry(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "id")
	assignmentID := chi.URLParam(r, "assignmentID")

	var req UpdateRosterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	a := &repository.Assignment{
		ID:             assignmentID,
		ShiftID:        shiftID,
		PrimaryRole:    req.PrimaryRole,
		SecondaryRoles: pq.StringArray(req.SecondaryRoles),
		BuddyID:        req.BuddyID,
	}
	if err := h.service.UpdateRosterEntry(r.Context(), shiftID, a); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

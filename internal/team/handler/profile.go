package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"

	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/internal/team/service"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// ProfileHandler handles staff account endpoints
type ProfileHandler struct {
	service *service.ProfileService
	logger  *logger.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(svc *service.ProfileService, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: svc,
		logger:  log,
	}
}

// List lists the store's staff
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	profiles, err := h.service.List(r.Context(), activeOnly)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, profiles)
}

// Get gets a staff member by ID
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, profile)
}

// UpdateProfileRequest is the request structure for updating a profile
type UpdateProfileRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	FirstName   string   `json:"first_name" validate:"required,max=100"`
	LastName    string   `json:"last_name" validate:"required,max=100"`
	Role        string   `json:"role" validate:"required,oneof=team_member prep_cook pitmaster shift_leader manager operator"`
	Permissions []string `json:"permissions"`
}

// Update updates a staff member
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	profile := &repository.Profile{
		ID:          id,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        req.Role,
		Permissions: pq.StringArray(req.Permissions),
	}
	if err := h.service.Update(r.Context(), profile); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, profile)
}

// ImportStaffEntry is one row of a staff import
type ImportStaffEntry struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Role      string `json:"role" validate:"omitempty,oneof=team_member prep_cook pitmaster shift_leader manager operator"`
}

// ImportStaffRequest is the request structure for a bulk staff import
type ImportStaffRequest struct {
	Staff []ImportStaffEntry `json:"staff" validate:"required,min=1,max=200,dive"`
}

// Import creates the store's initial roster in one batch
func (h *ProfileHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportStaffRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	entries := make([]*repository.Profile, 0, len(req.Staff))
	for _, e := range req.Staff {
		entries = append(entries, &repository.Profile{
			Email:     e.Email,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Role:      e.Role,
		})
	}
	if err := h.service.ImportStaff(r.Context(), entries); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, entries)
}

// DeactivateRequest carries an optional reason for the audit trail
type DeactivateRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Deactivate deactivates a staff account
func (h *ProfileHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DeactivateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.Deactivate(r.Context(), id, req.Reason); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Reactivate reactivates a staff account
func (h *ProfileHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Reactivate(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// SetPinRequest is the request structure for setting a kiosk PIN
type SetPinRequest struct {
	Pin string `json:"pin" validate:"required,min=4,max=8"`
}

// SetPin sets a staff member's kiosk PIN
func (h *ProfileHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetPinRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.SetPin(r.Context(), id, req.Pin); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// PinSignInRequest is the kiosk sign-in request
type PinSignInRequest struct {
	Pin string `json:"pin" validate:"required,min=4,max=8"`
}

// PinSignIn signs a staff member in by kiosk PIN. This endpoint sits
// outside the store-scoped router; a match yields the profile and store.
func (h *ProfileHandler) PinSignIn(w http.ResponseWriter, r *http.Request) {
	var req PinSignInRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	profile, err := h.service.PinSignIn(r.Context(), req.Pin)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, profile)
}

// AuditLog lists the store's audit trail
func (h *ProfileHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.ListAuditLog(r.Context(), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

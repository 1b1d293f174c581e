package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/internal/team/service"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// InvitationHandler handles employee invitation endpoints
type InvitationHandler struct {
	service *service.InvitationService
	logger  *logger.Logger
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(svc *service.InvitationService, log *logger.Logger) *InvitationHandler {
	return &InvitationHandler{
		service: svc,
		logger:  log,
	}
}

// InviteRequest is the request structure for inviting a staff member
type InviteRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Role      string `json:"role" validate:"omitempty,oneof=team_member prep_cook pitmaster shift_leader manager operator"`
}

// Create invites a new staff member
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	inv := &repository.Invitation{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}
	created, err := h.service.Invite(r.Context(), inv)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, created)
}

// List lists the store's invitations
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.service.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, invitations)
}

// Revoke withdraws a pending invitation
func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Revoke(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// AcceptRequest redeems an invitation token
type AcceptRequest struct {
	Token string `json:"token" validate:"required"`
}

// Accept redeems an invitation token and creates the staff profile.
// Like PIN sign-in, this endpoint sits outside the store-scoped router.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req AcceptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	profile, err := h.service.Accept(r.Context(), req.Token)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, profile)
}

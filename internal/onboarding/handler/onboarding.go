package handler

import (
	"net/http"

	"github.com/smokestack/smokestack-backend/internal/onboarding/service"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// OnboardingHandler handles store onboarding endpoints
type OnboardingHandler struct {
	service *service.OnboardingService
	logger  *logger.Logger
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(svc *service.OnboardingService, log *logger.Logger) *OnboardingHandler {
	return &OnboardingHandler{
		service: svc,
		logger:  log,
	}
}

// Status returns the store's onboarding state
func (h *OnboardingHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetStatus(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// StoreSetupRequest is the request structure for the store setup step
type StoreSetupRequest struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Address string  `json:"address" validate:"required,max=500"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
}

// CompleteStoreSetup records the store profile and advances the sequencer
func (h *OnboardingHandler) CompleteStoreSetup(w http.ResponseWriter, r *http.Request) {
	var req StoreSetupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	status, err := h.service.CompleteStoreSetup(r.Context(), req.Name, req.Address, req.Phone)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// CompleteEmployeeImport advances the sequencer past employee import
func (h *OnboardingHandler) CompleteEmployeeImport(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CompleteEmployeeImport(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// AccessGate blocks the rest of the API until the store finishes
// onboarding. Mount it on every store-scoped route group except the
// onboarding endpoints themselves.
func AccessGate(svc *service.OnboardingService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status, err := svc.GetStatus(r.Context())
			if err != nil {
				httputil.Error(w, err)
				return
			}
			if status.Incomplete {
				httputil.Error(w, errors.StateConflict("store onboarding is not complete"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

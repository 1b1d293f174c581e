package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smokestack/smokestack-backend/internal/team/service"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// QcashHandler handles Q-Cash ledger endpoints
type QcashHandler struct {
	service *service.QcashService
	logger  *logger.Logger
}

// NewQcashHandler creates a new Q-Cash handler
func NewQcashHandler(svc *service.QcashService, log *logger.Logger) *QcashHandler {
	return &QcashHandler{
		service: svc,
		logger:  log,
	}
}

// AwardRequest is the request structure for awarding Q-Cash
type AwardRequest struct {
	Amount      int    `json:"amount" validate:"required,min=1"`
	Description string `json:"description" validate:"max=500"`
}

// Award grants Q-Cash to a staff member
func (h *QcashHandler) Award(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")

	var req AwardRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	txn, err := h.service.Award(r.Context(), profileID, req.Amount, req.Description)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, txn)
}

// TransferRequest is the request structure for transferring Q-Cash
type TransferRequest struct {
	ToProfileID string `json:"to_profile_id" validate:"required,uuid"`
	Amount      int    `json:"amount" validate:"required,min=1"`
	Description string `json:"description" validate:"max=500"`
}

// Transfer moves Q-Cash from one staff member to another
func (h *QcashHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	fromID := chi.URLParam(r, "id")

	var req TransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.Transfer(r.Context(), fromID, req.ToProfileID, req.Amount, req.Description); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Balance returns a staff member's Q-Cash balance
func (h *QcashHandler) Balance(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")

	balance, err := h.service.Balance(r.Context(), profileID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"balance": balance})
}

// Ledger lists a staff member's Q-Cash history
func (h *QcashHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := h.service.Ledger(r.Context(), profileID, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, txns)
}

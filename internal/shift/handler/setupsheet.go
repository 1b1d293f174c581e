package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smokestack/smokestack-backend/internal/shift/repository"
	"github.com/smokestack/smokestack-backend/internal/shift/service"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/httputil"
	"github.com/smokestack/smokestack-backend/pkg/logger"
)

// SetupSheetHandler handles setup sheet endpoints
type SetupSheetHandler struct {
	service *service.SetupSheetService
	logger  *logger.Logger
}

// NewSetupSheetHandler creates a new setup sheet handler
func NewSetupSheetHandler(svc *service.SetupSheetService, log *logger.Logger) *SetupSheetHandler {
	return &SetupSheetHandler{
		service: svc,
		logger:  log,
	}
}

// CreateSheetRequest is the request structure for creating a setup sheet
type CreateSheetRequest struct {
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	ShiftType string   `json:"shift_type" validate:"required,oneof=opening lunch dinner closing all_day"`
	Notes     *string  `json:"notes"`
	Positions []string `json:"positions" validate:"required,min=1,dive,required,max=100"`
}

// Create builds the position plan for a date and shift
func (h *SetupSheetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSheetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	sheet := &repository.SetupSheet{
		Date:      date,
		ShiftType: req.ShiftType,
		Notes:     req.Notes,
	}
	for _, name := range req.Positions {
		sheet.Positions = append(sheet.Positions, &repository.SetupPosition{Name: name})
	}

	created, err := h.service.Create(r.Context(), sheet)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, created)
}

// Get gets a sheet with its positions
func (h *SetupSheetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sheet, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sheet)
}

// ListByDate lists the sheets for a date (?date=YYYY-MM-DD, default today)
func (h *SetupSheetHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	sheets, err := h.service.ListByDate(r.Context(), date)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sheets)
}

// AddPositionRequest is the request structure for adding a station
type AddPositionRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// AddPosition appends a station to a sheet
func (h *SetupSheetHandler) AddPosition(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "id")

	var req AddPositionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	pos := &repository.SetupPosition{
		SheetID: sheetID,
		Name:    req.Name,
	}
	if err := h.service.AddPosition(r.Context(), pos); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, pos)
}

// DeletePosition removes a station
func (h *SetupSheetHandler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "positionID")

	if err := h.service.DeletePosition(r.Context(), positionID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// AssignPositionRequest is the request structure for staffing a station
type AssignPositionRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid"`
}

// AssignPosition puts a staff member on a station
func (h *SetupSheetHandler) AssignPosition(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "id")
	positionID := chi.URLParam(r, "positionID")

	var req AssignPositionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.AssignPosition(r.Context(), sheetID, positionID, req.ProfileID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// UnassignPosition clears a station
func (h *SetupSheetHandler) UnassignPosition(w http.ResponseWriter, r *http.Request) {
	sheetID := chi.URLParam(r, "id")
	positionID := chi.URLParam(r, "positionID")

	if err := h.service.UnassignPosition(r.Context(), sheetID, positionID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

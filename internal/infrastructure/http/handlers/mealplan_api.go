// Package handlers provides JSON API handlers for meal plan operations
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealforge/v1/internal/ports/inbound"
	apperrors "github.com/mealforge/v1/pkg/errors"
)

// userIDHeader carries the authenticated user, set by the upstream gateway.
const userIDHeader = "X-User-ID"

// MealPlanHandlers provides the meal plan API endpoints
type MealPlanHandlers struct {
	planner inbound.PlannerService
	logger  *zap.Logger
}

// NewMealPlanHandlers creates new meal plan API handlers
func NewMealPlanHandlers(planner inbound.PlannerService, logger *zap.Logger) *MealPlanHandlers {
	return &MealPlanHandlers{
		planner: planner,
		logger:  logger.Named("mealplan-api"),
	}
}

type createPlanRequest struct {
	DateFrom           string             `json:"dateFrom"`
	Days               int                `json:"days"`
	Slots              []string           `json:"slots"`
	SlotStylePrefs     map[string]string  `json:"slotStylePrefs,omitempty"`
	TherapeuticTargets map[string]float64 `json:"therapeuticTargets,omitempty"`
}

type regeneratePlanRequest struct {
	Date string `json:"date,omitempty"`
}

// CreatePlan handles POST /api/v1/mealplans
func (h *MealPlanHandlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)

	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.NewValidationError("malformed JSON body"))
		return
	}

	dateFrom, err := time.Parse("2006-01-02", req.DateFrom)
	if err != nil {
		h.writeError(w, r, apperrors.NewValidationError("dateFrom must be YYYY-MM-DD"))
		return
	}

	plan, err := h.planner.CreatePlan(r.Context(), inbound.CreatePlanCommand{
		UserID:             userID,
		DateFrom:           dateFrom,
		Days:               req.Days,
		Slots:              req.Slots,
		SlotStylePrefs:     req.SlotStylePrefs,
		TherapeuticTargets: req.TherapeuticTargets,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, plan)
}

// RegeneratePlan handles POST /api/v1/mealplans/{id}/regenerate
func (h *MealPlanHandlers) RegeneratePlan(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)

	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, apperrors.NewValidationError("plan id must be a UUID"))
		return
	}

	var req regeneratePlanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, apperrors.NewValidationError("malformed JSON body"))
			return
		}
	}

	cmd := inbound.RegeneratePlanCommand{
		UserID: userID,
		PlanID: planID,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			h.writeError(w, r, apperrors.NewValidationError("date must be YYYY-MM-DD"))
			return
		}
		cmd.Date = &date
	}

	plan, err := h.planner.RegeneratePlan(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, plan)
}

// GetPlan handles GET /api/v1/mealplans/{id}
func (h *MealPlanHandlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)

	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, apperrors.NewValidationError("plan id must be a UUID"))
		return
	}

	plan, err := h.planner.GetPlan(r.Context(), inbound.GetPlanQuery{
		UserID: userID,
		PlanID: planID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, plan)
}

func (h *MealPlanHandlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *MealPlanHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.Wrap(err, "request failed")
	requestID := chimiddleware.GetReqID(r.Context())

	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	if encodeErr := json.NewEncoder(w).Encode(apperrors.ToErrorResponse(appErr, requestID)); encodeErr != nil {
		h.logger.Error("Failed to encode error response", zap.Error(encodeErr))
	}
}

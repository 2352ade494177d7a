package handlers

import (
	"errors"
	"net/http"

	"github.com/equitydesk/captable-backend/internal/api/request"
	"github.com/equitydesk/captable-backend/internal/api/response"
	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/service"
	"github.com/equitydesk/captable-backend/internal/validation"
)

// WaterfallHandler handles exit distribution HTTP requests.
type WaterfallHandler struct {
	waterfallService *service.WaterfallService
}

// NewWaterfallHandler creates a new WaterfallHandler
func NewWaterfallHandler(waterfallService *service.WaterfallService) *WaterfallHandler {
	return &WaterfallHandler{
		waterfallService: waterfallService,
	}
}

// Distribute handles POST requests to run one exit scenario through the
// waterfall against the cap table as of a date.
//
// Endpoint: POST /api/waterfall/distribute
// Request Body: DistributeRequest (as_of, scenario)
// Response: 200 OK with waterfall.DistributionResult
// Error: 400 Bad Request if the body, date, or scenario terms are invalid
// Error: 422 Unprocessable Entity if snapshot replay fails
func (h *WaterfallHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.DistributeRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateDistribute(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	asOf, err := validation.ParseDate(req.AsOf)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid as_of date", err.Error())
		return
	}

	result, err := h.waterfallService.Distribute(asOf, req.Scenario)
	if err != nil {
		respondWaterfallError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Scenarios handles POST requests to compare several exit scenarios against
// the same snapshot. Results come back in request order, so side-by-side
// rendering needs no client-side matching.
//
// Endpoint: POST /api/waterfall/scenarios
// Request Body: DistributeScenariosRequest (as_of, scenarios)
// Response: 200 OK with []waterfall.DistributionResult
// Error: 400 Bad Request if the body, date, or any scenario is invalid
// Error: 422 Unprocessable Entity if snapshot replay fails
func (h *WaterfallHandler) Scenarios(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.DistributeScenariosRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateDistributeScenarios(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	asOf, err := validation.ParseDate(req.AsOf)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid as_of date", err.Error())
		return
	}

	results, err := h.waterfallService.DistributeScenarios(r.Context(), asOf, req.Scenarios)
	if err != nil {
		respondWaterfallError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, results)
}

// Validate handles POST requests to run one scenario through the waterfall
// and check the result's conservation properties instead of returning it.
//
// Endpoint: POST /api/waterfall/validate
// Request Body: DistributeRequest (as_of, scenario)
// Response: 200 OK with validate.Report (valid flag, errors, warnings)
// Error: 400 Bad Request if the body, date, or scenario terms are invalid
// Error: 422 Unprocessable Entity if snapshot replay fails
func (h *WaterfallHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.DistributeRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateDistribute(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	asOf, err := validation.ParseDate(req.AsOf)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid as_of date", err.Error())
		return
	}

	result, err := h.waterfallService.Distribute(asOf, req.Scenario)
	if err != nil {
		respondWaterfallError(w, err)
		return
	}

	report := h.waterfallService.ValidateDistribution(result, req.Scenario)
	response.RespondJSON(w, http.StatusOK, report)
}

// respondWaterfallError separates caller mistakes (bad scenario terms, a log
// that cannot replay) from server faults.
func respondWaterfallError(w http.ResponseWriter, err error) {
	var cfgErr *apperrors.WaterfallConfigError
	if errors.As(err, &cfgErr) {
		response.RespondError(w, http.StatusBadRequest, "invalid scenario", err.Error())
		return
	}
	var violation *apperrors.DomainViolation
	if errors.As(err, &violation) {
		response.RespondError(w, http.StatusUnprocessableEntity, "event log cannot be replayed", err.Error())
		return
	}
	response.RespondError(w, http.StatusInternalServerError, "failed to distribute scenario", err.Error())
}

package handlers

import (
	"net/http"
	"time"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/response"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// TreatyRuleHandler handles HTTP requests for treaty-rule endpoints.
type TreatyRuleHandler struct {
	ruleService *service.TreatyRuleService
}

// NewTreatyRuleHandler creates a new TreatyRuleHandler with the provided service dependency.
func NewTreatyRuleHandler(ruleService *service.TreatyRuleService) *TreatyRuleHandler {
	return &TreatyRuleHandler{
		ruleService: ruleService,
	}
}

// ListRules handles GET requests to retrieve all treaty rules.
//
// Endpoint: GET /api/treaty-rule
// Response: 200 OK with array of TreatyRule
// Error: 500 Internal Server Error if retrieval fails
func (h *TreatyRuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleService.ListRules(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveRules.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, rules)
}

// CreateRule handles POST requests to ingest a treaty rule.
// Overlapping validity ranges for the same country pair and security type
// are rejected at ingestion time.
//
// Endpoint: POST /api/treaty-rule
// Request Body: CreateTreatyRuleRequest
// Response: 201 Created with TreatyRule
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 409 Conflict if the validity range overlaps an existing rule
// Error: 500 Internal Server Error if creation fails
func (h *TreatyRuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateTreatyRuleRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateTreatyRule(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	effectiveFrom, err := request.ParseDate(req.EffectiveFrom)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", "effectiveFrom must be a date in YYYY-MM-DD format")
		return
	}
	var effectiveTo *time.Time
	if req.EffectiveTo != "" {
		parsed, err := request.ParseDate(req.EffectiveTo)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "validation failed", "effectiveTo must be a date in YYYY-MM-DD format")
			return
		}
		effectiveTo = &parsed
	}

	securityType := model.SecurityType(req.SecurityType)
	if req.SecurityType == "" {
		securityType = model.SecurityTypeEquity
	}

	rule, err := h.ruleService.CreateRule(r.Context(), &model.TreatyRule{
		SourceCountry:            req.SourceCountry,
		ResidenceCountry:         req.ResidenceCountry,
		SecurityType:             securityType,
		StandardWithholdingRate:  req.StandardWithholdingRate,
		TreatyRate:               req.TreatyRate,
		ReliefAtSourceAvailable:  req.ReliefAtSourceAvailable,
		RefundProcedureAvailable: req.RefundProcedureAvailable,
		EffectiveFrom:            effectiveFrom,
		EffectiveTo:              effectiveTo,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, rule)
}

// ResolveRule handles GET requests to resolve the treaty rule applicable to
// a country pair on a reference date.
//
// Endpoint: GET /api/treaty-rule/resolve?sourceCountry=US&residenceCountry=CH&securityType=EQUITY&date=2024-05-01
// Response: 200 OK with TreatyRule
// Error: 400 Bad Request if query parameters are invalid
// Error: 404 Not Found if no rule covers the pair and date
// Error: 500 Internal Server Error if resolution fails
func (h *TreatyRuleHandler) ResolveRule(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	source := query.Get("sourceCountry")
	residence := query.Get("residenceCountry")

	if err := validation.ValidateCountryCode(source); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", "sourceCountry must be a 2-letter ISO country code")
		return
	}
	if err := validation.ValidateCountryCode(residence); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", "residenceCountry must be a 2-letter ISO country code")
		return
	}

	var date time.Time
	if raw := query.Get("date"); raw != "" {
		parsed, err := request.ParseDate(raw)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "validation failed", "date must be in YYYY-MM-DD format")
			return
		}
		date = parsed
	}

	rule, err := h.ruleService.Resolve(r.Context(), source, residence, model.SecurityType(query.Get("securityType")), date)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, rule)
}

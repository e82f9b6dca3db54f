package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/middleware"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/response"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// CalculationHandler handles HTTP requests for reclaim-calculation endpoints.
type CalculationHandler struct {
	reclaimService  *service.ReclaimService
	dividendService *service.DividendService
	profileService  *service.ProfileService
}

// NewCalculationHandler creates a new CalculationHandler with the provided service dependencies.
func NewCalculationHandler(reclaimService *service.ReclaimService, dividendService *service.DividendService, profileService *service.ProfileService) *CalculationHandler {
	return &CalculationHandler{
		reclaimService:  reclaimService,
		dividendService: dividendService,
		profileService:  profileService,
	}
}

// CalculateDividend handles POST requests to compute and persist the reclaim
// for a single stored dividend. The caller's residence country from the
// profile drives the treaty lookup.
//
// Endpoint: POST /api/calculation/dividend/{uuid}
// Response: 200 OK with CalculationResult
// Error: 400 Bad Request if dividend ID is invalid (validated by middleware)
// Error: 404 Not Found if dividend or profile not found
// Error: 500 Internal Server Error if calculation fails
func (h *CalculationHandler) CalculateDividend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	// Ownership check before calculating against someone else's dividend.
	dividend, err := h.dividendService.GetDividend(r.Context(), userID, chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	profile, err := h.profileService.GetProfile(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := h.reclaimService.CalculateAndUpdate(r.Context(), dividend.ID, profile.CountryOfResidence)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// CalculateUser handles POST requests to run a batch calculation over the
// caller's unsubmitted dividends. The residence country defaults to the
// caller's profile; persist=true writes the computed rates back to each
// dividend.
//
// Endpoint: POST /api/calculation/user
// Request Body: CalculateUserRequest (residenceCountry, persist; both optional)
// Response: 200 OK with BatchResult
// Error: 400 Bad Request if the request body is invalid
// Error: 404 Not Found if no profile exists and no residence country was given
// Error: 500 Internal Server Error if calculation fails
func (h *CalculationHandler) CalculateUser(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CalculateUserRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	userID := middleware.UserID(r.Context())

	residence := req.ResidenceCountry
	if residence == "" {
		profile, err := h.profileService.GetProfile(r.Context(), userID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		residence = profile.CountryOfResidence
	} else if err := validation.ValidateCountryCode(residence); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", "residenceCountry must be a 2-letter ISO country code")
		return
	}

	var batch service.BatchResult
	if req.Persist {
		batch, err = h.reclaimService.CalculateAndUpdateForUser(r.Context(), userID, residence)
	} else {
		batch, err = h.reclaimService.CalculateForUser(r.Context(), userID, residence)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, batch)
}

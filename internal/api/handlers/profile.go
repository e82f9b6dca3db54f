package handlers

import (
	"net/http"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/middleware"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/response"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// ProfileHandler handles HTTP requests for user-profile endpoints.
type ProfileHandler struct {
	profileService *service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler with the provided service dependency.
func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

// GetProfile handles GET requests to retrieve the caller's profile.
//
// Endpoint: GET /api/profile
// Response: 200 OK with UserProfile
// Error: 404 Not Found if no profile exists yet
// Error: 500 Internal Server Error if retrieval fails
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.GetProfile(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, profile)
}

// UpsertProfile handles PUT requests to create or replace the caller's
// profile. The residence country defaults to the configured country when
// not given.
//
// Endpoint: PUT /api/profile
// Request Body: UpsertProfileRequest
// Response: 200 OK with UserProfile
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if persistence fails
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.UpsertProfileRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateUpsertProfile(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	profile, err := h.profileService.UpsertProfile(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, profile)
}

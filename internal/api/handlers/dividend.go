package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/middleware"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/response"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// DividendHandler handles HTTP requests for dividend endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the dividendService.
type DividendHandler struct {
	dividendService *service.DividendService
}

// NewDividendHandler creates a new DividendHandler with the provided service dependency.
func NewDividendHandler(dividendService *service.DividendService) *DividendHandler {
	return &DividendHandler{
		dividendService: dividendService,
	}
}

// ListDividends handles GET requests to retrieve the caller's dividends.
// With ?unsubmitted=true only dividends not yet attached to a generated
// form are returned.
//
// Endpoint: GET /api/dividend
// Response: 200 OK with array of Dividend
// Error: 500 Internal Server Error if retrieval fails
func (h *DividendHandler) ListDividends(w http.ResponseWriter, r *http.Request) {
	unsubmittedOnly := r.URL.Query().Get("unsubmitted") == "true"

	dividends, err := h.dividendService.ListDividends(r.Context(), middleware.UserID(r.Context()), unsubmittedOnly)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveDividends.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, dividends)
}

// GetDividend handles GET requests to retrieve a single dividend.
//
// Endpoint: GET /api/dividend/{uuid}
// Response: 200 OK with Dividend
// Error: 400 Bad Request if dividend ID is invalid (validated by middleware)
// Error: 404 Not Found if dividend not found or owned by another user
// Error: 500 Internal Server Error if retrieval fails
func (h *DividendHandler) GetDividend(w http.ResponseWriter, r *http.Request) {
	dividend, err := h.dividendService.GetDividend(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, dividend)
}

// CreateDividend handles POST requests to register a manually entered
// dividend. The source country is derived from the ISIN prefix when not
// given explicitly.
//
// Endpoint: POST /api/dividend
// Request Body: CreateDividendRequest
// Response: 201 Created with Dividend
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if creation fails
func (h *DividendHandler) CreateDividend(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateDividendRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateDividend(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	dividend, err := h.dividendService.CreateDividend(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, dividend)
}

// DeleteDividend handles DELETE requests to remove a dividend. Dividends
// already attached to a generated form cannot be deleted.
//
// Endpoint: DELETE /api/dividend/{uuid}
// Response: 204 No Content on successful deletion
// Error: 400 Bad Request if dividend ID is invalid (validated by middleware)
// Error: 404 Not Found if dividend not found or owned by another user
// Error: 409 Conflict if the dividend is attached to a generated form
// Error: 500 Internal Server Error if deletion fails
func (h *DividendHandler) DeleteDividend(w http.ResponseWriter, r *http.Request) {
	err := h.dividendService.DeleteDividend(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/middleware"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/response"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// FormHandler handles HTTP requests for tax-form generation endpoints.
type FormHandler struct {
	formService *service.FormService
}

// NewFormHandler creates a new FormHandler with the provided service dependency.
func NewFormHandler(formService *service.FormService) *FormHandler {
	return &FormHandler{
		formService: formService,
	}
}

// ListForms handles GET requests to retrieve the caller's generated forms.
//
// Endpoint: GET /api/form
// Response: 200 OK with array of GeneratedForm
// Error: 500 Internal Server Error if retrieval fails
func (h *FormHandler) ListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := h.formService.ListForms(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveForms.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, forms)
}

// GetForm handles GET requests to retrieve a single generated form.
//
// Endpoint: GET /api/form/{uuid}
// Response: 200 OK with GeneratedForm
// Error: 400 Bad Request if form ID is invalid (validated by middleware)
// Error: 404 Not Found if form not found or owned by another user
// Error: 500 Internal Server Error if retrieval fails
func (h *FormHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.formService.GetForm(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, form)
}

// GenerateForm handles POST requests to generate a tax-form document. On
// success the result carries a time-limited download URL; on failure the
// result explains what went wrong and no artifact is left behind.
//
// Endpoint: POST /api/form
// Request Body: GenerateFormRequest (formType, taxYear; dividendIds for schedule and bundle)
// Response: 201 Created with GenerationResult
// Error: 400 Bad Request if validation fails, the profile is incomplete, or the request body is invalid
// Error: 404 Not Found if the profile or a dividend does not exist
// Error: 409 Conflict if a dividend is already attached to another form
// Error: 500 Internal Server Error if rendering, upload or persistence fails
func (h *FormHandler) GenerateForm(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.GenerateFormRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateGenerateForm(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	result, err := h.formService.Generate(r.Context(), middleware.UserID(r.Context()),
		model.FormType(req.FormType), req.TaxYear, req.DividendIDs)
	if err != nil {
		respondGenerationFailure(w, result, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, result)
}

// RegenerateForm handles POST requests to re-render an existing form from
// its current dividends and profile data, overwriting the stored artifact.
//
// Endpoint: POST /api/form/{uuid}/regenerate
// Response: 200 OK with GenerationResult
// Error: 400 Bad Request if form ID is invalid (validated by middleware) or the profile is incomplete
// Error: 404 Not Found if form not found or owned by another user
// Error: 500 Internal Server Error if rendering or upload fails
func (h *FormHandler) RegenerateForm(w http.ResponseWriter, r *http.Request) {
	result, err := h.formService.Regenerate(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "uuid"))
	if err != nil {
		respondGenerationFailure(w, result, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// DownloadForm handles GET requests to obtain a fresh presigned download URL
// for an existing form.
//
// Endpoint: GET /api/form/{uuid}/download
// Response: 200 OK with {"downloadUrl": "..."}
// Error: 400 Bad Request if form ID is invalid (validated by middleware)
// Error: 404 Not Found if form not found or owned by another user
// Error: 500 Internal Server Error if presigning fails
func (h *FormHandler) DownloadForm(w http.ResponseWriter, r *http.Request) {
	url, err := h.formService.DownloadURL(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]string{"downloadUrl": url})
}

// DeleteForm handles DELETE requests to remove a generated form. The linked
// dividends are released for inclusion in a new form and the stored artifact
// is deleted.
//
// Endpoint: DELETE /api/form/{uuid}
// Response: 204 No Content on successful deletion
// Error: 400 Bad Request if form ID is invalid (validated by middleware)
// Error: 404 Not Found if form not found or owned by another user
// Error: 500 Internal Server Error if deletion fails
func (h *FormHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	err := h.formService.DeleteForm(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}

// respondGenerationFailure serializes a failed GenerationResult under the
// status code the underlying error maps to, so clients get both the machine
// status and the structured result.
func respondGenerationFailure(w http.ResponseWriter, result service.GenerationResult, err error) {
	status := statusForError(err)
	respondJSON(w, status, result)
}

// statusForError mirrors respondServiceError's mapping but returns the code
// instead of writing a response.
func statusForError(err error) int {
	rec := httpStatusRecorder{status: http.StatusInternalServerError}
	respondServiceError(&rec, err)
	return rec.status
}

// httpStatusRecorder captures only the status code written by a responder.
type httpStatusRecorder struct {
	header http.Header
	status int
}

func (r *httpStatusRecorder) Header() http.Header {
	if r.header == nil {
		r.header = make(http.Header)
	}
	return r.header
}

func (r *httpStatusRecorder) Write([]byte) (int, error) { return 0, nil }

func (r *httpStatusRecorder) WriteHeader(status int) { r.status = status }

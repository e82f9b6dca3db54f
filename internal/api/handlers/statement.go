package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/middleware"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/response"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/parser"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// maxStatementFileSize caps the statement file accepted for in-process
// parsing.
const maxStatementFileSize = 10 << 20

// StatementHandler handles HTTP requests for broker-statement endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the statementService.
type StatementHandler struct {
	statementService *service.StatementService
}

// NewStatementHandler creates a new StatementHandler with the provided service dependency.
func NewStatementHandler(statementService *service.StatementService) *StatementHandler {
	return &StatementHandler{
		statementService: statementService,
	}
}

// ListStatements handles GET requests to retrieve the caller's statements.
//
// Endpoint: GET /api/statement
// Response: 200 OK with array of DividendStatement
// Error: 500 Internal Server Error if retrieval fails
func (h *StatementHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	statements, err := h.statementService.ListStatements(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveStatements.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, statements)
}

// GetStatement handles GET requests to retrieve a single statement.
//
// Endpoint: GET /api/statement/{uuid}
// Response: 200 OK with DividendStatement
// Error: 400 Bad Request if statement ID is invalid (validated by middleware)
// Error: 404 Not Found if statement not found or owned by another user
// Error: 500 Internal Server Error if retrieval fails
func (h *StatementHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := h.getOwnedStatement(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, statement)
}

// CreateStatement handles POST requests to register an uploaded broker
// statement. New statements always start in status UPLOADED.
//
// Endpoint: POST /api/statement
// Request Body: CreateStatementRequest (broker, sourceFileRef, periodStart, periodEnd)
// Response: 201 Created with DividendStatement
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if creation fails
func (h *StatementHandler) CreateStatement(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateStatementRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateStatement(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	periodStart, _ := request.ParseDate(req.PeriodStart)
	periodEnd, _ := request.ParseDate(req.PeriodEnd)

	statement, err := h.statementService.CreateStatement(r.Context(),
		middleware.UserID(r.Context()), req.SourceFileRef, req.Broker, periodStart, periodEnd)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to create statement", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, statement)
}

// TransitionStatement handles POST requests to advance a statement's
// lifecycle status. Only single-step forward transitions are allowed; a
// transition to SENT requires a sent method.
//
// Endpoint: POST /api/statement/{uuid}/transition
// Request Body: TransitionStatementRequest (status; sentMethod, sentNotes, paidAmount as applicable)
// Response: 200 OK with the updated DividendStatement
// Error: 400 Bad Request if the transition is invalid or validation fails
// Error: 404 Not Found if statement not found or owned by another user
// Error: 500 Internal Server Error if the update fails
func (h *StatementHandler) TransitionStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := h.getOwnedStatement(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	req, err := parseJSON[request.TransitionStatementRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateTransitionStatement(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	updated, err := h.statementService.Transition(r.Context(), statement.ID,
		model.StatementStatus(req.Status), service.TransitionOptions{
			SentMethod: model.SentMethod(req.SentMethod),
			SentNotes:  req.SentNotes,
			PaidAmount: req.PaidAmount,
		})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, updated)
}

// ParseStatement handles POST requests carrying the raw statement file for
// in-process parsing. The statement is driven UPLOADED -> PARSING -> PARSED
// with its dividends materialized in one call.
//
// Endpoint: POST /api/statement/{uuid}/parse
// Request Body: the statement file bytes (e.g. a CSV export)
// Response: 200 OK with array of created Dividend
// Error: 400 Bad Request if the file is empty or cannot be parsed
// Error: 404 Not Found if statement not found or owned by another user
// Error: 409 Conflict if the statement is past UPLOADED
// Error: 500 Internal Server Error if persistence fails
func (h *StatementHandler) ParseStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := h.getOwnedStatement(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	fileBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStatementFileSize))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "failed to read statement file", err.Error())
		return
	}
	if len(fileBytes) == 0 {
		response.RespondError(w, http.StatusBadRequest, "statement file is empty", "")
		return
	}

	dividends, err := h.statementService.IngestFile(r.Context(), statement.ID, fileBytes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, dividends)
}

// ApplyParsed handles POST requests from the parsing collaborator carrying
// the dividend records extracted from the statement file. The rows and the
// statement's summary totals are written atomically; the statement's status
// is driven separately through the transition endpoint.
//
// Endpoint: POST /api/statement/{uuid}/parsed
// Request Body: ApplyParsedRequest (dividends)
// Response: 200 OK with array of created Dividend
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 404 Not Found if statement not found or owned by another user
// Error: 500 Internal Server Error if persistence fails
func (h *StatementHandler) ApplyParsed(w http.ResponseWriter, r *http.Request) {
	statement, err := h.getOwnedStatement(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	req, err := parseJSON[request.ApplyParsedRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateApplyParsed(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	records := make([]parser.DividendRecord, len(req.Dividends))
	for i, d := range req.Dividends {
		records[i] = d.ToRecord()
	}

	dividends, err := h.statementService.ApplyParsedResult(r.Context(), statement.ID, parser.ParseResult{
		Dividends: records,
		Metadata:  parser.Metadata{Broker: req.Broker},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, dividends)
}

// getOwnedStatement loads the statement addressed by the URL and verifies it
// belongs to the caller. Foreign statements read as not found.
func (h *StatementHandler) getOwnedStatement(r *http.Request) (*model.DividendStatement, error) {
	statement, err := h.statementService.GetStatement(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		return nil, err
	}
	if statement.OwnerUserID != middleware.UserID(r.Context()) {
		return nil, apperrors.ErrStatementNotFound
	}
	return statement, nil
}

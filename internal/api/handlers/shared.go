// Package handlers contains the HTTP layer: request parsing, validation
// dispatch and response shaping. Business logic lives in the service layer.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/response"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON: %v", err)
		}
	}
}

// parseJSON decodes a request body into the given type, rejecting unknown
// fields.
func parseJSON[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("invalid JSON body: %w", err)
	}
	return v, nil
}

// respondServiceError maps service-layer errors onto HTTP status codes.
// Sentinel not-found errors become 404, validation failures 400,
// state-machine and submission conflicts 409, everything else 500.
func respondServiceError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	var terr *apperrors.InvalidTransitionError

	switch {
	case errors.Is(err, apperrors.ErrStatementNotFound),
		errors.Is(err, apperrors.ErrDividendNotFound),
		errors.Is(err, apperrors.ErrFormNotFound),
		errors.Is(err, apperrors.ErrTreatyRuleNotFound),
		errors.Is(err, apperrors.ErrProfileNotFound):
		response.RespondError(w, http.StatusNotFound, err.Error(), "")

	case errors.As(err, &verr):
		response.RespondError(w, http.StatusBadRequest, "validation failed", verr.Fields)

	case errors.Is(err, validation.ErrInvalidIsin),
		errors.Is(err, apperrors.ErrIncompleteProfile),
		errors.Is(err, apperrors.ErrEmptyDividendList),
		errors.Is(err, apperrors.ErrSentMethodRequired),
		errors.Is(err, apperrors.ErrUnparsableStatement):
		response.RespondError(w, http.StatusBadRequest, err.Error(), "")

	case errors.As(err, &terr):
		response.RespondError(w, http.StatusConflict, "invalid transition", terr.Error())

	case errors.Is(err, apperrors.ErrDividendSubmitted),
		errors.Is(err, apperrors.ErrOverlappingRule),
		errors.Is(err, apperrors.ErrDuplicateEntry):
		response.RespondError(w, http.StatusConflict, err.Error(), "")

	default:
		response.RespondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/middleware"
)

// WHY: every resource route carries a {uuid} segment; malformed identifiers
// must be refused before a handler touches the database.
func TestValidateUUIDMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		uuid       string
		wantStatus int
		wantNext   bool
	}{
		{"passes through a valid UUID", "550e8400-e29b-41d4-a716-446655440000", http.StatusOK, true},
		{"rejects a malformed UUID", "not-a-uuid", http.StatusBadRequest, false},
		{"rejects an empty UUID", "", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/statement/"+tt.uuid, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("uuid", tt.uuid)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			// Execute
			rec := httptest.NewRecorder()
			middleware.ValidateUUIDMiddleware(next).ServeHTTP(rec, req)

			// Assert
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if nextCalled != tt.wantNext {
				t.Errorf("Expected next called %v, got %v", tt.wantNext, nextCalled)
			}
		})
	}
}

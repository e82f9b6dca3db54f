package middleware

import (
	"context"
	"net/http"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/response"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

type contextKey string

const userIDKey contextKey = "userID"

// RequireUser validates the X-User-ID header set by the identity
// collaborator in front of this service and stores the user ID in the
// request context. Returns 401 Unauthorized when the header is missing or
// not a UUID.
//
// Authentication itself happens upstream; this service trusts the forwarded
// identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			response.RespondError(w, http.StatusUnauthorized, "authentication required", "Missing user identity")
			return
		}
		if err := validation.ValidateUUID(userID); err != nil {
			response.RespondError(w, http.StatusUnauthorized, "authentication required", "Invalid user identity")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user ID stored by RequireUser, or the
// empty string when the request was not authenticated.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

package handler

import (
	"context"
	"log"
	"net/http"

	"auconnect/internal/auth"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type contextKey string

const userIDKey contextKey = "userId"

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated user id in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.FromRequest(r)
		if err != nil {
			log.Printf("[%s %s] ❌ Unauthorized: %v", r.Method, r.URL.Path, err)
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		userID, err := h.Verifier.Verify(token)
		if err != nil {
			log.Printf("[%s %s] ❌ Unauthorized: %v", r.Method, r.URL.Path, err)
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// currentUser returns the user id set by RequireAuth.
func currentUser(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

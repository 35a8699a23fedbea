package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	AuthModeLocalOpen = "local_open"
	AuthModeToken     = "token"
)

// Auth gates the API.
// - local_open: every request passes (single-user localhost deployments)
// - token: requires Authorization: Bearer <token> matching the configured token
func Auth(authMode, apiToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authMode == AuthModeLocalOpen {
				next.ServeHTTP(w, r)
				return
			}

			if apiToken == "" {
				denyJSON(w, http.StatusInternalServerError, "api token is not configured")
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				denyJSON(w, http.StatusUnauthorized, "missing token")
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiToken)) != 1 {
				denyJSON(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func denyJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

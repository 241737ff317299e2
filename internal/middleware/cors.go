package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS allows browser clients from allowedOrigins to call the API with a
// bearer token. "*" allows any origin; credentials (cookies) are never
// needed, so they stay disabled.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
		Debug:            false,
	})
}

// AllowsAnyOrigin reports whether the list contains the wildcard.
func AllowsAnyOrigin(origins []string) bool {
	return slices.Contains(origins, "*")
}

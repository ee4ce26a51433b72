package middleware

import (
	"net/http"
	"strings"
)

// CORS allows browser clients from origin to call the API with credentials.
// "*" reflects the caller's origin, since wildcard origins cannot carry cookies.
func CORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin != "" && allowedOrigin(origin, requestOrigin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", requestOrigin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")

				if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
					h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
					h.Set("Access-Control-Max-Age", "600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigin(configured, requestOrigin string) bool {
	if configured == "*" {
		return true
	}
	for _, candidate := range strings.Split(configured, ",") {
		if strings.EqualFold(strings.TrimSpace(candidate), requestOrigin) {
			return true
		}
	}
	return false
}

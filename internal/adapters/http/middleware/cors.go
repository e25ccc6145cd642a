package middleware

import (
	"net/http"
)

const (
	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Accept, Content-Type"
)

// CORS echoes an allowed Origin back to the browser. A single "*" entry
// allows every origin but never with credentials. Preflights from other
// origins are rejected; plain requests pass through without CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	permits := func(origin string) bool {
		if origin == "" {
			return false
		}
		if wildcard {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			ok := permits(origin)

			h := w.Header()
			if ok {
				h.Set("Access-Control-Allow-Origin", origin)
				if !wildcard {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", "300")

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if ok {
				w.WriteHeader(http.StatusNoContent)
			} else {
				w.WriteHeader(http.StatusForbidden)
			}
		})
	}
}

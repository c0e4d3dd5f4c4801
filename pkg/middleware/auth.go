package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const serviceKeyHeader = "X-Service-Key"

// ServiceAuth returns middleware that guards internal endpoints with a shared
// service key. Callers present the key either in the X-Service-Key header or
// as a bearer token. An empty configured key disables the check, which is only
// acceptable in development.
func ServiceAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(serviceKeyHeader)
			if presented == "" {
				if auth := r.Header.Get("Authorization"); auth != "" {
					parts := strings.SplitN(auth, " ", 2)
					if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
						presented = parts[1]
					}
				}
			}

			if presented == "" {
				writeAuthError(w, "missing service key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				writeAuthError(w, "invalid service key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": message,
	})
}

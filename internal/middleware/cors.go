// Package middleware provides HTTP middleware for the motion coaching API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware that handles CORS headers for allowedOrigins.
// A "*" entry allows any origin but never with credentials: the anonymous
// identity cookie is only shared with explicitly listed origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	explicit := make(map[string]bool, len(allowedOrigins))
	wildcard := false
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		explicit[o] = true
	}

	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}

	withCreds := cors.New(cors.Options{
		AllowedOrigins:   keys(explicit),
		AllowedMethods:   opts.AllowedMethods,
		AllowedHeaders:   opts.AllowedHeaders,
		AllowCredentials: true,
	})
	anyOrigin := cors.New(cors.Options{
		AllowOriginFunc: func(string) bool { return wildcard },
		AllowedMethods:  opts.AllowedMethods,
		AllowedHeaders:  opts.AllowedHeaders,
	})

	return func(next http.Handler) http.Handler {
		credentialed := withCreds.Handler(next)
		open := anyOrigin.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if explicit[r.Header.Get("Origin")] {
				credentialed.ServeHTTP(w, r)
				return
			}
			open.ServeHTTP(w, r)
		})
	}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

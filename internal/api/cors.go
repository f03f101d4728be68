package api

import (
	"net/http"
	"net/url"
	"slices"

	"github.com/rs/cors"
)

// CORS returns middleware allowing cross-origin requests from origins. "*"
// allows any origin. Credentials are allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Correlation-ID"},
	})
	return c.Handler
}

// OriginPatterns converts CORS origins to the host patterns accepted by the
// WebSocket handshake.
func OriginPatterns(origins []string) []string {
	if slices.Contains(origins, "*") {
		return []string{"*"}
	}
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}

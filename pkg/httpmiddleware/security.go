package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/unrolled/secure"
)

// CORSConfig represents CORS configuration options
type CORSConfig struct {
	AllowedMethods []string
	AllowedHeaders []string
	AllowedOrigins []string
	ExposedHeaders []string
	MaxAge         int
}

// DefaultCORSConfig allows read-only access to the ops endpoints from any
// origin, so dashboards can poll health and metrics.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Accept"},
		AllowedOrigins: []string{"https://*", "http://*"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}
}

// CORS middleware configures Cross-Origin Resource Sharing
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedMethods: config.AllowedMethods,
		AllowedHeaders: config.AllowedHeaders,
		AllowedOrigins: config.AllowedOrigins,
		ExposedHeaders: config.ExposedHeaders,
		MaxAge:         config.MaxAge,
	})
}

// Security middleware adds security headers. Nil options use the ops defaults:
// no framing, no sniffing, and a locked-down content security policy.
func Security(opts *secure.Options) func(http.Handler) http.Handler {
	if opts == nil {
		opts = &secure.Options{
			FrameDeny:             true,
			ContentTypeNosniff:    true,
			ContentSecurityPolicy: "default-src 'none'",
			ReferrerPolicy:        "no-referrer",
		}
	}
	return secure.New(*opts).Handler
}

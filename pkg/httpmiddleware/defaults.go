// Package httpmiddleware assembles the middleware stack of the ops HTTP server.
package httpmiddleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/chat_console/pkg/logger"
	"github.com/lewisedginton/chat_console/pkg/metrics"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger   logger.Logger    // Required for logging middleware
	Metrics  *metrics.Metrics // Required for request metrics
	CORS     *CORSConfig
	Security *secure.Options // nil uses the ops defaults
	Timeout  time.Duration

	EnableCorrelationID bool
	EnableLogging       bool // requires Logger
	EnableMetrics       bool // requires Metrics
	EnableRecovery      bool
	EnableCORS          bool
	EnableSecurity      bool
	EnableHeartbeat     bool // /ping
	EnableRealIP        bool
	EnableTimeout       bool
}

// DefaultConfig returns the ops server configuration.
// Logging and metrics stay off until a Logger or Metrics is supplied.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		CORS:    &corsConfig,
		Timeout: 30 * time.Second,

		EnableCorrelationID: true,
		EnableRecovery:      true,
		EnableCORS:          true,
		EnableSecurity:      true,
		EnableHeartbeat:     true,
		EnableRealIP:        true,
		EnableTimeout:       true,
	}
}

// ApplyToRouter applies the configured middleware to a Chi router.
// First applied is outermost:
//
//	CorrelationID, Security, RealIP, Logging, Metrics, Recovery, CORS, Timeout, Heartbeat
func ApplyToRouter(router chi.Router, config Config) {
	if config.EnableCorrelationID {
		router.Use(CorrelationID())
	}
	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}
	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}
	if config.EnableLogging && config.Logger != nil {
		router.Use(config.Logger.HTTPMiddleware)
	}
	if config.EnableMetrics && config.Metrics != nil {
		router.Use(config.Metrics.HTTPMiddleware())
	}
	if config.EnableRecovery {
		if config.Logger != nil {
			router.Use(Recovery(config.Logger))
		} else {
			router.Use(middleware.Recoverer)
		}
	}
	if config.EnableCORS && config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}
	if config.EnableTimeout {
		router.Use(middleware.Timeout(config.Timeout))
	}
	if config.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// WithObservability applies DefaultConfig with request logging and metrics enabled.
func WithObservability(router chi.Router, log logger.Logger, m *metrics.Metrics) {
	config := DefaultConfig()
	config.Logger = log
	config.EnableLogging = log != nil
	config.Metrics = m
	config.EnableMetrics = m != nil
	ApplyToRouter(router, config)
}

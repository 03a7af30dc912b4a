// Package monitoring wires the console's health checks: connector readiness,
// the audit database and the paste service.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/chat_console/internal/transport"
	"github.com/lewisedginton/chat_console/pkg/health"
	"github.com/lewisedginton/chat_console/pkg/health/checkers"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

// Health status constants
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusReady     = "ready"
	statusNotReady  = "not_ready"
)

// HealthMonitor manages health checks and monitoring endpoints for the application
type HealthMonitor struct {
	checker   *health.HealthChecker
	logger    logger.Logger
	version   string
	startTime time.Time
}

// Config holds configuration for the health monitor
type Config struct {
	Logger     logger.Logger
	Version    string
	Connectors []transport.Connector
	Database   checkers.Pinger // Optional: audit database pool
	PasteURL   string          // Optional: paste service to check over HTTP
	Timeout    time.Duration   // Health check timeout
	// Number of consecutive failures before reporting unhealthy
	FailureThreshold int
}

// Paths are the routes the health endpoints are served on.
type Paths struct {
	Liveness  string
	Readiness string
	Combined  string
}

// NewHealthMonitor creates a new health monitor with configured checks
func NewHealthMonitor(cfg Config) *HealthMonitor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	failureThreshold := cfg.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 3
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	checker := health.New(
		health.WithLogger(log),
		health.WithTimeout(timeout),
		health.WithFailureThreshold(failureThreshold),
	)

	checker.AddLivenessCheck(health.NewCheckFunc("process", func(context.Context) error {
		return nil
	}))

	for _, conn := range cfg.Connectors {
		checker.AddReadinessCheck(health.NewReadyCheck(conn.Platform()+"_connector", conn.Ready))
	}
	if cfg.Database != nil {
		checker.AddReadinessCheck(checkers.NewPostgresChecker(cfg.Database, "audit_database"))
	}
	if cfg.PasteURL != "" {
		checker.AddReadinessCheck(checkers.NewHTTPChecker(cfg.PasteURL, "paste_service"))
	}

	return &HealthMonitor{
		checker:   checker,
		logger:    log,
		version:   cfg.Version,
		startTime: time.Now(),
	}
}

// LivenessHandler returns an HTTP handler for Kubernetes liveness checks
func (hm *HealthMonitor) LivenessHandler() http.HandlerFunc {
	return hm.checker.LivenessHandler()
}

// ReadinessHandler returns an HTTP handler for Kubernetes readiness checks.
// It reports not ready until every connector is connected and after Drain.
func (hm *HealthMonitor) ReadinessHandler() http.HandlerFunc {
	return hm.checker.ReadinessHandler()
}

// HealthHandler returns a combined health endpoint that includes both liveness and readiness
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		livenessStatus, livenessErr := hm.checker.CheckLiveness(ctx)
		readinessStatus, readinessErr := hm.checker.CheckReadiness(ctx)

		liveness := map[string]any{"status": statusHealthy, "checks": livenessStatus.Checks}
		readiness := map[string]any{"status": statusReady, "checks": readinessStatus.Checks}
		response := map[string]any{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"version":   hm.version,
			"liveness":  liveness,
			"readiness": readiness,
		}

		if livenessErr != nil {
			liveness["status"] = statusUnhealthy
			liveness["error"] = livenessErr.Error()
		}
		if readinessErr != nil {
			readiness["status"] = statusNotReady
			readiness["error"] = readinessErr.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		if livenessErr != nil || readinessErr != nil {
			response["status"] = statusUnhealthy
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			hm.logger.Error("Failed to encode health response", logger.ErrorField(err))
		}
	}
}

// RegisterHandlers registers all health check endpoints on the router
func (hm *HealthMonitor) RegisterHandlers(r chi.Router, paths Paths) {
	r.Get(paths.Combined, hm.HealthHandler())
	r.Get(paths.Liveness, hm.LivenessHandler())
	r.Get(paths.Readiness, hm.ReadinessHandler())
}

// Drain marks the service as not ready once shutdown begins
func (hm *HealthMonitor) Drain() {
	hm.checker.SetDraining()
}

package health

import (
	"encoding/json"
	"net/http"

	"github.com/lewisedginton/chat_console/pkg/logger"
)

// HealthResponse is the JSON body of the liveness and readiness endpoints.
type HealthResponse struct {
	Status  string                 `json:"status"`            // "healthy" | "unhealthy"
	Checks  map[string]CheckStatus `json:"checks,omitempty"`  // check name -> status
	Message string                 `json:"message,omitempty"` // optional message
}

// CheckStatus represents the status of an individual check in the HTTP response.
type CheckStatus struct {
	Status  string `json:"status"`            // "ok" | "error"
	Error   string `json:"error,omitempty"`   // error message if status is "error"
	Latency string `json:"latency,omitempty"` // latency in human-readable format
}

// LivenessHandler answers 200 while the process is alive and 503 when it
// should be restarted.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.CheckLiveness(r.Context())
		h.writeHealthResponse(w, status, err)
	}
}

// ReadinessHandler answers 200 while every connector and dependency is ready,
// and 503 otherwise or once the service is draining.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.CheckReadiness(r.Context())
		h.writeHealthResponse(w, status, err)
	}
}

// writeHealthResponse encodes status before writing the header, so an encoding
// failure can still be reported as a 500.
func (h *HealthChecker) writeHealthResponse(w http.ResponseWriter, status *HealthStatus, err error) {
	response := HealthResponse{
		Status: "healthy",
		Checks: make(map[string]CheckStatus, len(status.Checks)),
	}
	code := http.StatusOK
	if !status.Healthy {
		response.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		if err != nil {
			response.Message = err.Error()
		}
	}

	for _, result := range status.Checks {
		check := CheckStatus{Status: "ok", Latency: result.Latency.String()}
		if !result.Healthy {
			check.Status = "error"
			check.Error = result.Error
		}
		response.Checks[result.Name] = check
	}

	body, encErr := json.Marshal(response)
	if encErr != nil {
		if h.logger != nil {
			h.logger.Error("Failed to encode health response", logger.ErrorField(encErr))
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

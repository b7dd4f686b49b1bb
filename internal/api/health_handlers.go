package api

import (
	"net/http"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/http/response"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

// handleHealthCheck reports overall server health with per-component
// detail.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overall := "healthy"
	components := make(map[string]ComponentHealth)

	start := time.Now()
	if err := s.store.Ping(ctx); err != nil {
		overall = "unhealthy"
		components["database"] = ComponentHealth{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	} else {
		components["database"] = ComponentHealth{
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
	}

	switch valid, message := s.settings.ValidateFile(); {
	case !s.settings.FileExists():
		// No document yet: defaults are in use, which is fine.
		components["settings"] = ComponentHealth{
			Status:  "healthy",
			Message: "using defaults, no settings file",
		}
	case !valid:
		if overall == "healthy" {
			overall = "degraded"
		}
		components["settings"] = ComponentHealth{
			Status:  "degraded",
			Message: message,
		}
	default:
		components["settings"] = ComponentHealth{Status: "healthy"}
	}

	response.Success(w, HealthResponse{
		Status:     overall,
		Components: components,
	}, s.logger)
}

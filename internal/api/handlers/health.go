package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/render"
	"github.com/homeport/stackpilot/internal/app/status"
)

// HealthStatus represents the overall health status.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Version   string       `json:"version,omitempty"`
	Uptime    string       `json:"uptime,omitempty"`
	StartedAt string       `json:"started_at,omitempty"`
	Host      string       `json:"host,omitempty"`
	State     status.State `json:"state,omitempty"`
	System    *SystemInfo  `json:"system,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
}

// HealthHandler reports the liveness of the dashboard itself, not of the
// managed stack.
type HealthHandler struct {
	startTime time.Time
	version   string
	ops       Operations
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, ops Operations) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		ops:       ops,
	}
}

// HandleHealth handles GET /health - basic health check.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:  HealthStatusHealthy,
		Version: h.version,
	})
}

// HandleHealthDetailed handles GET /health/detailed. The dashboard is
// degraded when no managed host is configured.
func (h *HealthHandler) HandleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	st := h.ops.Status()
	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		StartedAt: h.startTime.Format(time.RFC3339),
		Host:      h.ops.Host(),
		State:     st.State,
		System: &SystemInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
		},
	}
	if resp.Host == "" {
		resp.Status = HealthStatusDegraded
	}

	render.JSON(w, r, resp)
}

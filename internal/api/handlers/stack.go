package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/homeport/stackpilot/internal/app/control"
	"github.com/homeport/stackpilot/internal/app/status"
	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/pkg/httputil"
)

// Operations is the control surface the handlers drive. It is implemented
// by *control.Service.
type Operations interface {
	Host() string
	Status() status.Status
	Store() *status.Store
	LastScan() (*control.ScanResult, bool)
	Scan(ctx context.Context) (*control.ScanResult, error)
	Deploy(ctx context.Context) (*stack.Outcome, error)
	CheckHealth(ctx context.Context) (stack.StatusMap, error)
	ProxyConfig(kind host.ProxyKind) (string, error)
	ReferenceDoc() (string, error)
}

// StackHandler serves scan, deploy and health check requests.
type StackHandler struct {
	ops Operations
}

// NewStackHandler creates a stack handler.
func NewStackHandler(ops Operations) *StackHandler {
	return &StackHandler{ops: ops}
}

// RegisterRoutes mounts the stack routes on r.
func (h *StackHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.HandleStatus)
	r.Route("/scan", func(r chi.Router) {
		r.Get("/", h.HandleLastScan)
		r.Post("/", h.HandleScan)
	})
	r.Post("/deploy", h.HandleDeploy)
	r.Post("/health-check", h.HandleHealthCheck)
	r.Get("/proxy-config", h.HandleProxyConfig)
}

// ServiceView is one row of the per-service status table.
type ServiceView struct {
	Service string `json:"service"`
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Healthy bool   `json:"healthy"`
	URL     string `json:"url,omitempty"`
}

// HealthCheckResponse is returned by POST /api/v1/health-check.
type HealthCheckResponse struct {
	Healthy  int           `json:"healthy"`
	Total    int           `json:"total"`
	Services []ServiceView `json:"services"`
}

// DeployResponse is returned by POST /api/v1/deploy.
type DeployResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Log      []string      `json:"log"`
	Services []ServiceView `json:"services"`
}

// HandleStatus returns the dashboard status record.
// GET /api/v1/status
func (h *StackHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.ops.Status())
}

// HandleScan collects a fresh snapshot of the host and returns it with the
// placement plan. Remote operations run to completion even when the client
// goes away, so the status record never stops mid-operation.
// POST /api/v1/scan
func (h *StackHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.ops.Scan(context.WithoutCancel(r.Context()))
	if err != nil {
		httputil.FromError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// HandleLastScan returns the last snapshot and plan.
// GET /api/v1/scan
func (h *StackHandler) HandleLastScan(w http.ResponseWriter, r *http.Request) {
	result, ok := h.ops.LastScan()
	if !ok {
		httputil.NotFound(w, r, "No scan has been performed yet")
		return
	}
	render.JSON(w, r, result)
}

// HandleDeploy deploys the stack with the last plan. A failed deployment is
// still a 200; the body carries success=false and the log.
// POST /api/v1/deploy
func (h *StackHandler) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.ops.Deploy(context.WithoutCancel(r.Context()))
	if err != nil {
		httputil.FromError(w, r, err)
		return
	}
	render.JSON(w, r, DeployResponse{
		Success:  outcome.Success,
		Message:  outcome.Message,
		Log:      outcome.Log,
		Services: serviceViews(outcome.Services),
	})
}

// HandleHealthCheck probes every service on the host.
// POST /api/v1/health-check
func (h *StackHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.ops.CheckHealth(context.WithoutCancel(r.Context()))
	if err != nil {
		httputil.FromError(w, r, err)
		return
	}
	render.JSON(w, r, HealthCheckResponse{
		Healthy:  statuses.HealthyCount(),
		Total:    len(stack.Services()),
		Services: serviceViews(statuses),
	})
}

// HandleProxyConfig returns the reverse proxy snippet for the last plan.
// GET /api/v1/proxy-config?kind=nginx|caddy
func (h *StackHandler) HandleProxyConfig(w http.ResponseWriter, r *http.Request) {
	kind := host.ProxyKind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))

	snippet, err := h.ops.ProxyConfig(kind)
	if err != nil {
		if errors.Is(err, errs.ErrNoScan) {
			httputil.NotFound(w, r, err.Error())
			return
		}
		httputil.FromError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(snippet))
}

func serviceViews(statuses stack.StatusMap) []ServiceView {
	views := make([]ServiceView, 0, len(stack.Services()))
	for _, svc := range stack.Services() {
		st := statuses[svc]
		views = append(views, ServiceView{
			Service: svc.String(),
			Name:    svc.DisplayName(),
			Running: st.Running,
			Healthy: st.Healthy,
			URL:     st.URL,
		})
	}
	return views
}

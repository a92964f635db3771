// Package health probes the managed services from inside the remote host.
package health

import (
	"context"
	"fmt"

	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/remote"
	"github.com/homeport/stackpilot/internal/pkg/logger"
)

// probeTimeoutSeconds bounds each local HTTP probe.
const probeTimeoutSeconds = 10

type check struct {
	command func(port int) string
	healthy func(output string) bool
}

var checks = map[stack.Service]check{
	stack.ServicePostgres: {
		command: func(int) string {
			return fmt.Sprintf("docker exec %s pg_isready -U stackpilot 2>&1 || echo 'failed'", stack.ServicePostgres.ContainerName())
		},
		healthy: DatabaseHealthy,
	},
	stack.ServiceN8N: {
		command: func(port int) string { return curl(port, "/healthz") },
		healthy: WorkflowHealthy,
	},
	stack.ServiceNtfy: {
		command: func(port int) string { return curl(port, "/v1/health") },
		healthy: NotifierHealthy,
	},
	stack.ServiceFetcher: {
		command: func(port int) string { return curl(port, "/health") },
		healthy: FetcherHealthy,
	},
}

func curl(port int, path string) string {
	return fmt.Sprintf("curl -s -m %d http://localhost:%d%s || echo 'failed'", probeTimeoutSeconds, port, path)
}

// Command returns the probe command for svc at port.
func Command(svc stack.Service, port int) string {
	return checks[svc].command(port)
}

// Prober runs one probe per managed service.
type Prober struct{}

// NewProber creates a prober.
func NewProber() *Prober {
	return &Prober{}
}

// Probe checks every managed service in order; Running mirrors Healthy. A
// channel failure stops the sweep and is returned, since no status taken
// over a broken session can be trusted.
func (p *Prober) Probe(ctx context.Context, session remote.Session, ports stack.Ports) (stack.StatusMap, error) {
	log := logger.With("op", "health", "host", session.Host())
	statuses := make(stack.StatusMap, len(ports))

	for _, svc := range stack.Services() {
		port := ports[svc]
		status := stack.ServiceStatus{URL: svc.URL(session.Host(), port)}

		output, err := session.Execute(ctx, Command(svc, port))
		if err != nil {
			log.Error("Health probe failed", "service", svc, "error", err)
			return nil, fmt.Errorf("health check of %s: %w", svc, err)
		}
		status.Healthy = checks[svc].healthy(output)
		status.Running = status.Healthy

		log.Debug("Health probe", "service", svc, "port", port, "healthy", status.Healthy)
		statuses[svc] = status
	}

	return statuses, nil
}

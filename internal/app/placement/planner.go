// Package placement derives a deployment plan from a preflight snapshot.
package placement

import (
	"fmt"
	"strings"

	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/generator/proxy"
	"github.com/homeport/stackpilot/internal/pkg/logger"
)

const (
	// probeWindow is the number of ports above the preferred one that are
	// tried before falling back.
	probeWindow = 99

	// fallbackOffset is added to the preferred port when the whole probe
	// window is taken. The fallback port is not checked for conflicts.
	fallbackOffset = 1000
)

// Warnings emitted by the planner, in the order they are appended.
const (
	WarnWebPortsBound    = "Ports 80/443 are already in use; the reverse proxy will be bound to 127.0.0.1 only"
	WarnExistingN8N      = "An n8n container already exists; the new deployment will use the container name %s"
	WarnExistingPostgres = "A PostgreSQL container already exists; consider reusing it instead of deploying %s"
	WarnRedeploy         = "Container %s from a previous deployment will be recreated"
)

// Plan computes the placement plan for facts. It is a pure function of its
// input: the same facts always yield the same plan.
func Plan(facts *host.Facts) *stack.Plan {
	reserved := facts.PortSet()

	ports := make(stack.Ports, len(stack.Services()))
	for _, svc := range stack.Services() {
		port := AssignPort(svc.PreferredPort(), reserved)
		ports[svc] = port
		reserved[port] = true
	}

	plan := &stack.Plan{
		Ports:              ports,
		ReuseExistingProxy: facts.Proxy.Detected(),
		ProxyKind:          string(proxyKind(facts)),
		Warnings:           warnings(facts),
		ReadyToDeploy:      facts.Runtime.Installed,
	}

	if proxy.Supported(facts.Proxy.Kind) {
		snippet, err := proxy.Render(facts.Proxy.Kind, ports)
		if err != nil {
			// Only reachable with a broken embedded template.
			logger.Error("Failed to render proxy snippet", "proxy", facts.Proxy.Kind, "error", err)
		} else {
			plan.ProxyConfig = snippet
		}
	}

	return plan
}

// AssignPort returns preferred when it is free, otherwise the first free port
// in preferred+1..preferred+99, otherwise preferred+1000 whether or not that
// port is taken.
func AssignPort(preferred int, busy map[int]bool) int {
	if !busy[preferred] {
		return preferred
	}
	for candidate := preferred + 1; candidate <= preferred+probeWindow; candidate++ {
		if !busy[candidate] {
			return candidate
		}
	}
	return preferred + fallbackOffset
}

func proxyKind(facts *host.Facts) host.ProxyKind {
	if facts.Proxy.Kind == "" {
		return host.ProxyNone
	}
	return facts.Proxy.Kind
}

func warnings(facts *host.Facts) []string {
	out := []string{}

	if facts.PortInUse(80) || facts.PortInUse(443) {
		out = append(out, WarnWebPortsBound)
	}
	for _, w := range []struct {
		svc     stack.Service
		foreign string
	}{
		{stack.ServiceN8N, WarnExistingN8N},
		{stack.ServicePostgres, WarnExistingPostgres},
	} {
		if !facts.HasExisting(w.svc) {
			continue
		}
		name := w.svc.ContainerName()
		if onlyManaged(facts.Runtime.Containers, w.svc) {
			out = append(out, fmt.Sprintf(WarnRedeploy, name))
		} else {
			out = append(out, fmt.Sprintf(w.foreign, name))
		}
	}

	return out
}

// onlyManaged reports whether every container matching svc is the one a
// previous deployment created. With no inventory the match is assumed
// foreign.
func onlyManaged(containers []host.Container, svc stack.Service) bool {
	fragment := strings.ToLower(svc.NameFragment())
	matched := false
	for _, c := range containers {
		name := strings.ToLower(c.Name)
		if !strings.Contains(name, fragment) {
			continue
		}
		if name != strings.ToLower(svc.ContainerName()) {
			return false
		}
		matched = true
	}
	return matched
}

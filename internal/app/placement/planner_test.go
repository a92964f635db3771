package placement

import (
	"fmt"
	"strings"
	"testing"

	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/domain/stack"
)

func factsWithPorts(ports ...int) *host.Facts {
	f := &host.Facts{
		Runtime:          host.Runtime{Installed: true},
		Proxy:            host.Proxy{Kind: host.ProxyNone},
		ExistingServices: map[stack.Service]bool{},
	}
	for _, p := range ports {
		f.Ports = append(f.Ports, host.ListeningPort{Port: p, Protocol: "tcp", State: "LISTEN"})
	}
	return f
}

func assertPlanInvariant(t *testing.T, facts *host.Facts, plan *stack.Plan) {
	t.Helper()
	busy := facts.PortSet()
	seen := map[int]stack.Service{}
	for _, svc := range stack.Services() {
		port, ok := plan.Ports[svc]
		if !ok {
			t.Errorf("no port assigned to %s", svc)
			continue
		}
		if busy[port] {
			t.Errorf("%s assigned busy port %d", svc, port)
		}
		if other, dup := seen[port]; dup {
			t.Errorf("%s and %s share port %d", svc, other, port)
		}
		seen[port] = svc
	}
}

func TestPlan_DefaultsOnIdleHost(t *testing.T) {
	plan := Plan(factsWithPorts())

	want := stack.DefaultPorts()
	for svc, port := range want {
		if plan.Ports[svc] != port {
			t.Errorf("%s: expected %d, got %d", svc, port, plan.Ports[svc])
		}
	}
	if plan.Ports.Postgres() != 5432 || plan.Ports.N8N() != 5678 || plan.Ports.Ntfy() != 8080 || plan.Ports.Fetcher() != 3001 {
		t.Errorf("unexpected default table %v", plan.Ports)
	}
	if len(plan.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", plan.Warnings)
	}
	if !plan.ReadyToDeploy {
		t.Error("expected ready")
	}
	if plan.ReuseExistingProxy || plan.ProxyConfig != "" {
		t.Errorf("expected no proxy reuse, got %+v", plan)
	}
}

func TestPlan_ProbesPastBusyPorts(t *testing.T) {
	facts := factsWithPorts(5432, 5433, 8080, 22)
	plan := Plan(facts)

	if plan.Ports.Postgres() != 5434 {
		t.Errorf("expected postgres on 5434, got %d", plan.Ports.Postgres())
	}
	if plan.Ports.Ntfy() != 8081 {
		t.Errorf("expected ntfy on 8081, got %d", plan.Ports.Ntfy())
	}
	assertPlanInvariant(t, facts, plan)
}

func TestPlan_FallbackAfterFullWindow(t *testing.T) {
	var busy []int
	for p := 5432; p <= 5531; p++ {
		busy = append(busy, p)
	}
	facts := factsWithPorts(busy...)
	plan := Plan(facts)

	if plan.Ports.Postgres() != 6432 {
		t.Errorf("expected fallback 6432, got %d", plan.Ports.Postgres())
	}
	assertPlanInvariant(t, facts, plan)
}

func TestAssignPort(t *testing.T) {
	if got := AssignPort(3001, map[int]bool{}); got != 3001 {
		t.Errorf("expected 3001, got %d", got)
	}
	if got := AssignPort(3001, map[int]bool{3001: true, 3002: true}); got != 3003 {
		t.Errorf("expected 3003, got %d", got)
	}

	// The fallback port is returned even when it is taken.
	busy := map[int]bool{4001: true}
	for p := 3001; p <= 3100; p++ {
		busy[p] = true
	}
	if got := AssignPort(3001, busy); got != 4001 {
		t.Errorf("expected unchecked fallback 4001, got %d", got)
	}
}

func TestPlan_PortsDistinctAcrossServices(t *testing.T) {
	for _, busy := range [][]int{
		{},
		{5432, 5678, 8080, 3001},
		{5678, 5679, 5680, 3001, 3002},
		{80, 443, 22, 5432},
	} {
		facts := factsWithPorts(busy...)
		assertPlanInvariant(t, facts, Plan(facts))
	}
}

func TestPlan_Readiness(t *testing.T) {
	facts := factsWithPorts(5432, 5678, 8080, 3001, 80, 443)
	facts.ExistingServices[stack.ServiceN8N] = true
	facts.ExistingServices[stack.ServicePostgres] = true

	if !Plan(facts).ReadyToDeploy {
		t.Error("expected readiness to ignore conflicts and existing services")
	}

	facts = factsWithPorts()
	facts.Runtime.Installed = false
	if Plan(facts).ReadyToDeploy {
		t.Error("expected not ready without a runtime")
	}
}

func TestPlan_WarningOrder(t *testing.T) {
	facts := factsWithPorts(443)
	facts.ExistingServices[stack.ServicePostgres] = true
	facts.ExistingServices[stack.ServiceN8N] = true

	plan := Plan(facts)

	want := []string{
		WarnWebPortsBound,
		fmt.Sprintf(WarnExistingN8N, "stackpilot-n8n"),
		fmt.Sprintf(WarnExistingPostgres, "stackpilot-postgres"),
	}
	if len(plan.Warnings) != len(want) {
		t.Fatalf("expected %d warnings, got %v", len(want), plan.Warnings)
	}
	for i := range want {
		if plan.Warnings[i] != want[i] {
			t.Errorf("warning %d: expected %q, got %q", i, want[i], plan.Warnings[i])
		}
	}
}

func TestPlan_OnlyDatabaseWarning(t *testing.T) {
	facts := factsWithPorts()
	facts.ExistingServices[stack.ServicePostgres] = true

	plan := Plan(facts)
	if len(plan.Warnings) != 1 || !strings.Contains(plan.Warnings[0], "PostgreSQL") {
		t.Errorf("expected a single database warning, got %v", plan.Warnings)
	}
}

func TestPlan_RedeployWarning(t *testing.T) {
	facts := factsWithPorts()
	facts.ExistingServices[stack.ServiceN8N] = true
	facts.ExistingServices[stack.ServicePostgres] = true
	facts.Runtime.Containers = []host.Container{
		{Name: "stackpilot-n8n", Image: "n8nio/n8n"},
		{Name: "stackpilot-postgres", Image: "postgres:16"},
	}

	plan := Plan(facts)

	want := []string{
		fmt.Sprintf(WarnRedeploy, "stackpilot-n8n"),
		fmt.Sprintf(WarnRedeploy, "stackpilot-postgres"),
	}
	if strings.Join(plan.Warnings, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got %v", want, plan.Warnings)
	}
}

func TestPlan_ForeignContainerBesideManagedOne(t *testing.T) {
	facts := factsWithPorts()
	facts.ExistingServices[stack.ServiceN8N] = true
	facts.Runtime.Containers = []host.Container{
		{Name: "stackpilot-n8n", Image: "n8nio/n8n"},
		{Name: "old-n8n", Image: "n8nio/n8n"},
	}

	plan := Plan(facts)
	if len(plan.Warnings) != 1 || plan.Warnings[0] != fmt.Sprintf(WarnExistingN8N, "stackpilot-n8n") {
		t.Errorf("expected the alternate-name warning, got %v", plan.Warnings)
	}
}

func TestPlan_NginxDetected(t *testing.T) {
	facts := factsWithPorts()
	facts.Proxy = host.Proxy{Kind: host.ProxyNginx, ConfigPath: "/etc/nginx/nginx.conf"}

	plan := Plan(facts)

	if !plan.ReadyToDeploy {
		t.Error("expected ready")
	}
	if !plan.ReuseExistingProxy {
		t.Error("expected proxy reuse")
	}
	if plan.ProxyKind != "nginx" {
		t.Errorf("expected proxy kind nginx, got %s", plan.ProxyKind)
	}
	if strings.Contains(plan.ProxyConfig, "reverse_proxy") {
		t.Error("nginx snippet must not contain reverse_proxy")
	}
	if n := strings.Count(plan.ProxyConfig, "proxy_pass"); n != 3 {
		t.Errorf("expected proxy_pass three times, got %d", n)
	}
}

func TestPlan_CaddyDetected(t *testing.T) {
	facts := factsWithPorts()
	facts.Proxy = host.Proxy{Kind: host.ProxyCaddy}

	plan := Plan(facts)
	if !strings.Contains(plan.ProxyConfig, "reverse_proxy") {
		t.Errorf("expected caddy snippet, got %q", plan.ProxyConfig)
	}
}

func TestPlan_TraefikHasNoSnippet(t *testing.T) {
	facts := factsWithPorts()
	facts.Proxy = host.Proxy{Kind: host.ProxyTraefik}

	plan := Plan(facts)
	if !plan.ReuseExistingProxy {
		t.Error("expected traefik to count as an existing proxy")
	}
	if plan.ProxyConfig != "" {
		t.Errorf("expected no snippet for traefik, got %q", plan.ProxyConfig)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	facts := factsWithPorts(5432, 80)
	facts.Proxy = host.Proxy{Kind: host.ProxyCaddy}

	a, b := Plan(facts), Plan(facts)
	if a.ProxyConfig != b.ProxyConfig || strings.Join(a.Warnings, "|") != strings.Join(b.Warnings, "|") {
		t.Error("expected identical plans for identical facts")
	}
	for svc := range a.Ports {
		if a.Ports[svc] != b.Ports[svc] {
			t.Errorf("%s: port differs between runs", svc)
		}
	}
}

package preflight

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/remote"
	"github.com/homeport/stackpilot/internal/infrastructure/remote/remotetest"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestCollector() *Collector {
	return NewCollector(WithClock(func() time.Time { return fixedTime }))
}

func dockerHost() *remotetest.Host {
	return remotetest.NewHost("203.0.113.10").
		On("os-release", "Ubuntu 22.04.4 LTS\n").
		On("uname -r", "5.15.0-105-generic\n").
		On("hostname", "vps-01\n").
		On("ss -tulnp", ssOutput).
		On("docker --version", "Docker version 27.1.1, build 6312585\n").
		On("docker compose version", "Docker Compose version v2.29.1\n").
		On("docker ps -a", "old-n8n|n8nio/n8n|Up 3 days|0.0.0.0:5678->5678/tcp\ncaddy|caddy:2|Up 3 days|\n").
		On("docker network ls", "bridge\nhost\nnone\n").
		On("docker volume ls", "n8n_data\n").
		On("nginx -t", "sh: 1: nginx: not found\nnot installed\n").
		On("command -v caddy", "not installed\n").
		On("command -v traefik", "not installed\n").
		On("df -h", "31G free of 40G\n").
		On("free -h", "1.2Gi free of 3.8Gi\n")
}

func TestCollector_Collect(t *testing.T) {
	h := dockerHost()

	facts, err := newTestCollector().Collect(context.Background(), h)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if facts.OS.Distribution != "Ubuntu 22.04.4 LTS" {
		t.Errorf("unexpected distribution %q", facts.OS.Distribution)
	}
	if facts.OS.Hostname != "vps-01" {
		t.Errorf("unexpected hostname %q", facts.OS.Hostname)
	}
	if len(facts.Ports) != 5 {
		t.Errorf("expected 5 ports, got %d", len(facts.Ports))
	}
	if !facts.Runtime.Installed {
		t.Fatal("expected runtime installed")
	}
	if len(facts.Runtime.Containers) != 2 {
		t.Errorf("expected 2 containers, got %d", len(facts.Runtime.Containers))
	}
	if len(facts.Runtime.Networks) != 3 || len(facts.Runtime.Volumes) != 1 {
		t.Errorf("unexpected networks %v or volumes %v", facts.Runtime.Networks, facts.Runtime.Volumes)
	}
	if facts.Proxy.Kind != host.ProxyCaddy {
		t.Errorf("expected caddy from container inventory, got %s", facts.Proxy.Kind)
	}
	if !facts.HasExisting(stack.ServiceN8N) {
		t.Error("expected existing n8n container")
	}
	if facts.HasExisting(stack.ServicePostgres) {
		t.Error("expected no existing postgres container")
	}
	if facts.Resources.Disk != "31G free of 40G" || facts.Resources.Memory != "1.2Gi free of 3.8Gi" {
		t.Errorf("unexpected resources %+v", facts.Resources)
	}
	if !facts.ScannedAt.Equal(fixedTime) {
		t.Errorf("expected scan time %v, got %v", fixedTime, facts.ScannedAt)
	}
}

func TestCollector_SkipsInventoryWithoutRuntime(t *testing.T) {
	h := remotetest.NewHost("203.0.113.11").
		On("docker --version", "not installed\n").
		On("docker compose version", "not installed\n").
		On("ss -tulnp", "failed\n")

	facts, err := newTestCollector().Collect(context.Background(), h)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if facts.Runtime.Installed {
		t.Error("expected runtime not installed")
	}
	for _, probe := range []string{"docker ps", "docker network ls", "docker volume ls"} {
		if h.Ran(probe) {
			t.Errorf("expected %q to be skipped", probe)
		}
	}
	if len(facts.Ports) != 0 {
		t.Errorf("expected no ports, got %+v", facts.Ports)
	}
	if facts.Proxy.Kind != host.ProxyNone {
		t.Errorf("expected no proxy, got %s", facts.Proxy.Kind)
	}
	if facts.OS.Kernel != "unknown" || facts.Resources.Disk != "unknown" {
		t.Errorf("expected empty probe output to read as unknown, got %+v %+v", facts.OS, facts.Resources)
	}
}

func TestCollector_ChannelFailure(t *testing.T) {
	h := remotetest.NewHost("203.0.113.12").FailOn("uname -r", errors.New("channel closed"))

	facts, err := newTestCollector().Collect(context.Background(), h)
	if err == nil {
		t.Fatal("expected an error")
	}
	if facts != nil {
		t.Errorf("expected no partial snapshot, got %+v", facts)
	}
	var execErr *errs.ExecutionError
	if !errors.As(err, &execErr) {
		t.Errorf("expected ExecutionError, got %T: %v", err, err)
	}
}

func TestCollector_Concurrency(t *testing.T) {
	c := NewCollector(WithConcurrency(1))
	if c.concurrency != 1 {
		t.Errorf("expected concurrency 1, got %d", c.concurrency)
	}
	if NewCollector(WithConcurrency(0)).concurrency != DefaultConcurrency {
		t.Error("expected non-positive concurrency to be ignored")
	}

	facts, err := c.Collect(context.Background(), dockerHost())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(facts.Ports) != 5 {
		t.Errorf("expected serial collection to yield the same ports, got %d", len(facts.Ports))
	}
}

// latentSession delays every runtime command so the host commands finish first.
type latentSession struct {
	remote.Session
	delay time.Duration
}

func (s latentSession) Execute(ctx context.Context, commandLine string) (string, error) {
	if strings.HasPrefix(commandLine, "docker") {
		time.Sleep(s.delay)
	}
	return s.Session.Execute(ctx, commandLine)
}

func TestCollector_SlowRuntimeProbes(t *testing.T) {
	session := latentSession{Session: dockerHost(), delay: 30 * time.Millisecond}

	facts, err := newTestCollector().Collect(context.Background(), session)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !facts.Runtime.Installed {
		t.Fatal("expected runtime installed")
	}
	if len(facts.Runtime.Containers) != 2 {
		t.Errorf("expected 2 containers, got %d", len(facts.Runtime.Containers))
	}
	if len(facts.Runtime.Volumes) != 1 {
		t.Errorf("expected 1 volume, got %v", facts.Runtime.Volumes)
	}
}

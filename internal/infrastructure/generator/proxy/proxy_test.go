package proxy

import (
	"strings"
	"testing"

	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/domain/stack"
)

func TestRenderNginx(t *testing.T) {
	out, err := RenderNginx(stack.DefaultPorts())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if n := strings.Count(out, "proxy_pass"); n != 3 {
		t.Errorf("expected 3 proxy_pass directives, got %d", n)
	}
	if strings.Contains(out, "reverse_proxy") {
		t.Error("nginx snippet must not contain reverse_proxy")
	}
	for _, want := range []string{
		"location /n8n/ {",
		"proxy_pass http://127.0.0.1:5678/;",
		"location /ntfy/ {",
		"proxy_pass http://127.0.0.1:8080/;",
		"location /fetcher/ {",
		"proxy_pass http://127.0.0.1:3001/;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected snippet to contain %q", want)
		}
	}
	if strings.Contains(out, "5432") {
		t.Error("database must not be proxied")
	}
}

func TestRenderCaddy(t *testing.T) {
	ports := stack.DefaultPorts()
	ports[stack.ServiceNtfy] = 8081

	out, err := RenderCaddy(ports)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if n := strings.Count(out, "reverse_proxy"); n != 3 {
		t.Errorf("expected 3 reverse_proxy directives, got %d", n)
	}
	if strings.Contains(out, "proxy_pass") {
		t.Error("caddy snippet must not contain proxy_pass")
	}
	if !strings.Contains(out, "reverse_proxy 127.0.0.1:8081") {
		t.Error("expected substituted ntfy port")
	}
	if strings.Contains(out, "5432") {
		t.Error("database must not be proxied")
	}
}

func TestRender_Deterministic(t *testing.T) {
	ports := stack.Ports{
		stack.ServicePostgres: 5433,
		stack.ServiceN8N:      5679,
		stack.ServiceNtfy:     9080,
		stack.ServiceFetcher:  3002,
	}

	for _, kind := range []host.ProxyKind{host.ProxyNginx, host.ProxyCaddy} {
		first, err := Render(kind, ports)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", kind, err)
		}
		second, err := Render(kind, ports)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", kind, err)
		}
		if first != second {
			t.Errorf("%s: expected byte-identical output", kind)
		}
	}
}

func TestRender_UnsupportedKinds(t *testing.T) {
	for _, kind := range []host.ProxyKind{host.ProxyTraefik, host.ProxyNone} {
		if Supported(kind) {
			t.Errorf("expected %s to be unsupported", kind)
		}
		out, err := Render(kind, stack.DefaultPorts())
		if err != nil || out != "" {
			t.Errorf("%s: expected empty snippet, got %q, %v", kind, out, err)
		}
	}
}

func TestRender_InvalidPorts(t *testing.T) {
	if _, err := RenderNginx(stack.Ports{stack.ServiceN8N: 5678}); err == nil {
		t.Error("expected error for incomplete port table")
	}
}

func TestRender_RoutesEveryProxiedService(t *testing.T) {
	nginx, err := RenderNginx(stack.DefaultPorts())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	caddy, err := RenderCaddy(stack.DefaultPorts())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, svc := range stack.ProxiedServices() {
		if want := "location " + svc.PathPrefix() + " {"; !strings.Contains(nginx, want) {
			t.Errorf("expected nginx snippet to contain %q", want)
		}
		if want := "handle_path " + svc.PathPrefix() + "* {"; !strings.Contains(caddy, want) {
			t.Errorf("expected caddy snippet to contain %q", want)
		}
	}
}

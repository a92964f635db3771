// Package proxy renders reverse-proxy snippets that route one path prefix to
// each proxied service.
package proxy

import (
	"fmt"

	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/templates"
)

const (
	nginxTemplate = "proxy/nginx.conf.tmpl"
	caddyTemplate = "proxy/Caddyfile.tmpl"
)

// upstream is one routed service. The database is never proxied.
type upstream struct {
	Path string
	Port int
}

// upstreams is the template data, keyed by service name.
type upstreams map[string]upstream

func newUpstreams(ports stack.Ports) (upstreams, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	data := make(upstreams, len(stack.ProxiedServices()))
	for _, svc := range stack.ProxiedServices() {
		data[svc.String()] = upstream{Path: svc.PathPrefix(), Port: ports[svc]}
	}
	return data, nil
}

// RenderNginx renders location blocks for an existing nginx server block.
func RenderNginx(ports stack.Ports) (string, error) {
	return render(nginxTemplate, ports)
}

// RenderCaddy renders handle_path blocks for an existing Caddy site.
func RenderCaddy(ports stack.Ports) (string, error) {
	return render(caddyTemplate, ports)
}

// Supported reports whether a snippet can be rendered for kind. Traefik is
// detected but has no snippet.
func Supported(kind host.ProxyKind) bool {
	return kind == host.ProxyNginx || kind == host.ProxyCaddy
}

// Render renders the snippet for kind. It returns an empty string and no
// error for kinds without a snippet.
func Render(kind host.ProxyKind, ports stack.Ports) (string, error) {
	switch kind {
	case host.ProxyNginx:
		return RenderNginx(ports)
	case host.ProxyCaddy:
		return RenderCaddy(ports)
	default:
		return "", nil
	}
}

func render(path string, ports stack.Ports) (string, error) {
	data, err := newUpstreams(ports)
	if err != nil {
		return "", fmt.Errorf("invalid ports: %w", err)
	}
	return templates.New().Render(path, data)
}

// Package host defines the snapshot of a remote machine produced by a
// preflight scan.
package host

import (
	"time"

	"github.com/homeport/stackpilot/internal/domain/stack"
)

// ProxyKind identifies a reverse proxy detected on the host.
type ProxyKind string

const (
	ProxyNone    ProxyKind = "none"
	ProxyNginx   ProxyKind = "nginx"
	ProxyCaddy   ProxyKind = "caddy"
	ProxyTraefik ProxyKind = "traefik"
)

// ProxyDetectionOrder is the priority in which proxies are probed.
var ProxyDetectionOrder = []ProxyKind{ProxyNginx, ProxyCaddy, ProxyTraefik}

// Facts is an immutable snapshot of one scan. It is created fresh on every
// scan and never mutated afterwards.
type Facts struct {
	OS               OSInfo                 `json:"os" yaml:"os"`
	Ports            []ListeningPort        `json:"ports" yaml:"ports"`
	Runtime          Runtime                `json:"runtime" yaml:"runtime"`
	Proxy            Proxy                  `json:"proxy" yaml:"proxy"`
	ExistingServices map[stack.Service]bool `json:"existing_services" yaml:"existing_services"`
	Resources        ResourceSnapshot       `json:"resources" yaml:"resources"`
	ScannedAt        time.Time              `json:"scanned_at" yaml:"scanned_at"`
}

// OSInfo is the operating-system identity of the host.
type OSInfo struct {
	Distribution string `json:"distribution" yaml:"distribution"`
	Kernel       string `json:"kernel" yaml:"kernel"`
	Hostname     string `json:"hostname" yaml:"hostname"`
}

// ListeningPort is one entry of the host's socket table.
type ListeningPort struct {
	Port     int    `json:"port" yaml:"port"`
	Protocol string `json:"protocol" yaml:"protocol"`
	Process  string `json:"process,omitempty" yaml:"process,omitempty"`
	State    string `json:"state" yaml:"state"`
}

// Runtime is the container runtime inventory.
type Runtime struct {
	Installed      bool        `json:"installed" yaml:"installed"`
	Version        string      `json:"version,omitempty" yaml:"version,omitempty"`
	ComposeVersion string      `json:"compose_version,omitempty" yaml:"compose_version,omitempty"`
	Containers     []Container `json:"containers" yaml:"containers"`
	Networks       []string    `json:"networks" yaml:"networks"`
	Volumes        []string    `json:"volumes" yaml:"volumes"`
}

// Container is one entry of the runtime's container list.
type Container struct {
	Name   string `json:"name" yaml:"name"`
	Image  string `json:"image" yaml:"image"`
	Status string `json:"status" yaml:"status"`
	Ports  string `json:"ports" yaml:"ports"`
}

// Proxy describes the detected reverse proxy.
type Proxy struct {
	Kind       ProxyKind `json:"kind" yaml:"kind"`
	ConfigPath string    `json:"config_path,omitempty" yaml:"config_path,omitempty"`
}

// Detected reports whether any proxy was found.
func (p Proxy) Detected() bool {
	return p.Kind != "" && p.Kind != ProxyNone
}

// ResourceSnapshot holds free/total disk and memory as preformatted strings.
type ResourceSnapshot struct {
	Disk   string `json:"disk" yaml:"disk"`
	Memory string `json:"memory" yaml:"memory"`
}

// PortSet returns the set of port numbers observed on the host.
func (f *Facts) PortSet() map[int]bool {
	set := make(map[int]bool, len(f.Ports))
	for _, p := range f.Ports {
		set[p.Port] = true
	}
	return set
}

// PortInUse reports whether port was observed on the host.
func (f *Facts) PortInUse(port int) bool {
	for _, p := range f.Ports {
		if p.Port == port {
			return true
		}
	}
	return false
}

// HasExisting reports whether a container for svc already exists.
func (f *Facts) HasExisting(svc stack.Service) bool {
	return f.ExistingServices[svc]
}

// Package stack defines the fixed set of services stackpilot provisions on a
// host, together with the plan and outcome types exchanged between the
// planner, the deployment executor and the health prober.
package stack

import (
	"fmt"
	"net"
	"strconv"
)

// Service identifies one managed service.
type Service string

const (
	// ServicePostgres is the database shared by the other services.
	ServicePostgres Service = "postgres"

	// ServiceN8N is the workflow engine.
	ServiceN8N Service = "n8n"

	// ServiceNtfy is the notification server.
	ServiceNtfy Service = "ntfy"

	// ServiceFetcher is the generated fetch microservice.
	ServiceFetcher Service = "fetcher"
)

// allServices is the display and probing order.
var allServices = []Service{
	ServicePostgres,
	ServiceN8N,
	ServiceNtfy,
	ServiceFetcher,
}

// Services returns every managed service in display order.
func Services() []Service {
	out := make([]Service, len(allServices))
	copy(out, allServices)
	return out
}

// ProxiedServices returns the services exposed through a reverse proxy.
// The database is never proxied.
func ProxiedServices() []Service {
	return []Service{ServiceN8N, ServiceNtfy, ServiceFetcher}
}

// String returns the string representation of the service.
func (s Service) String() string {
	return string(s)
}

// IsValid reports whether s is one of the managed services.
func (s Service) IsValid() bool {
	for _, svc := range allServices {
		if svc == s {
			return true
		}
	}
	return false
}

// serviceInfo holds the static properties of a managed service.
type serviceInfo struct {
	displayName   string
	preferredPort int
	containerPort int
	containerName string
	nameFragment  string
	pathPrefix    string
}

var catalog = map[Service]serviceInfo{
	ServicePostgres: {
		displayName:   "PostgreSQL",
		preferredPort: 5432,
		containerPort: 5432,
		containerName: "stackpilot-postgres",
		nameFragment:  "postgres",
	},
	ServiceN8N: {
		displayName:   "n8n",
		preferredPort: 5678,
		containerPort: 5678,
		containerName: "stackpilot-n8n",
		nameFragment:  "n8n",
		pathPrefix:    "/n8n/",
	},
	ServiceNtfy: {
		displayName:   "ntfy",
		preferredPort: 8080,
		containerPort: 80,
		containerName: "stackpilot-ntfy",
		nameFragment:  "ntfy",
		pathPrefix:    "/ntfy/",
	},
	ServiceFetcher: {
		displayName:   "Fetcher",
		preferredPort: 3001,
		containerPort: 3001,
		containerName: "stackpilot-fetcher",
		nameFragment:  "fetcher",
		pathPrefix:    "/fetcher/",
	},
}

// DisplayName returns a human-readable name.
func (s Service) DisplayName() string {
	return catalog[s].displayName
}

// PreferredPort returns the host port the planner tries first.
func (s Service) PreferredPort() int {
	return catalog[s].preferredPort
}

// ContainerPort returns the port the service listens on inside its container.
func (s Service) ContainerPort() int {
	return catalog[s].containerPort
}

// ContainerName returns the container name used by the generated manifest.
func (s Service) ContainerName() string {
	return catalog[s].containerName
}

// NameFragment returns the substring that identifies an existing container
// running this kind of service.
func (s Service) NameFragment() string {
	return catalog[s].nameFragment
}

// PathPrefix returns the reverse-proxy location for the service, or an empty
// string for services that are not proxied.
func (s Service) PathPrefix() string {
	return catalog[s].pathPrefix
}

// URL returns the address of the service on host at port.
func (s Service) URL(host string, port int) string {
	scheme := "http"
	if s == ServicePostgres {
		scheme = "postgres"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

// Package compose generates the Docker Compose manifest for the managed
// service stack.
package compose

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/homeport/stackpilot/internal/domain/stack"
)

// FileName is the manifest name inside the remote root.
const FileName = "docker-compose.yml"

// Generator generates Docker Compose files.
type Generator struct {
	projectName string
	network     *NetworkConfig
}

// NewGenerator creates a new Docker Compose generator.
func NewGenerator(projectName string) *Generator {
	return &Generator{
		projectName: projectName,
		network:     NewNetworkConfig(projectName),
	}
}

// Generate renders the manifest with the given host ports. The output is
// deterministic for a given port table.
func (g *Generator) Generate(ports stack.Ports) (string, error) {
	if err := ports.Validate(); err != nil {
		return "", fmt.Errorf("invalid ports: %w", err)
	}

	services := make(map[string]*Service)
	volumes := make(map[string]*Volume)

	for _, svc := range stack.Services() {
		def := g.serviceFor(svc, ports[svc])
		services[def.Name] = def

		for _, vol := range def.Volumes {
			name := strings.SplitN(vol, ":", 2)[0]
			if isNamedVolume(name) {
				volumes[name] = &Volume{Name: name, Driver: "local"}
			}
		}
	}

	sorted, err := g.topologicalSort(services)
	if err != nil {
		return "", fmt.Errorf("failed to sort services: %w", err)
	}

	compose := &ComposeFile{
		Order:    sorted,
		Services: services,
		Networks: g.network.GetNetworks(),
		Volumes:  volumes,
	}

	return g.generateYAML(compose)
}

// isNamedVolume reports whether the source part of a volume spec is a named
// volume rather than a bind mount.
func isNamedVolume(source string) bool {
	return source != "" && !strings.ContainsAny(source, "/.~")
}

// serviceFor returns the definition of one managed service.
func (g *Generator) serviceFor(svc stack.Service, hostPort int) *Service {
	def := &Service{
		Name:          svc.String(),
		ContainerName: svc.ContainerName(),
		Restart:       "unless-stopped",
		EnvFile:       []string{".env"},
		Ports:         []string{fmt.Sprintf("%d:%d", hostPort, svc.ContainerPort())},
		Networks:      []string{g.network.Default()},
	}

	switch svc {
	case stack.ServicePostgres:
		def.Image = "postgres:16-alpine"
		def.Volumes = []string{"postgres_data:/var/lib/postgresql/data"}
		def.HealthCheck = &HealthCheck{
			Test:        []string{"CMD-SHELL", "pg_isready -U ${POSTGRES_USER} -d ${POSTGRES_DB}"},
			Interval:    "10s",
			Timeout:     "5s",
			Retries:     5,
			StartPeriod: "10s",
		}

	case stack.ServiceN8N:
		def.Image = "n8nio/n8n:latest"
		def.Environment = map[string]string{
			"DB_TYPE":                "postgresdb",
			"DB_POSTGRESDB_HOST":     stack.ServicePostgres.String(),
			"DB_POSTGRESDB_PORT":     fmt.Sprintf("%d", stack.ServicePostgres.ContainerPort()),
			"DB_POSTGRESDB_DATABASE": "${POSTGRES_DB}",
			"DB_POSTGRESDB_USER":     "${POSTGRES_USER}",
			"DB_POSTGRESDB_PASSWORD": "${POSTGRES_PASSWORD}",
			"N8N_PORT":               fmt.Sprintf("%d", svc.ContainerPort()),
			"GENERIC_TIMEZONE":       "UTC",
		}
		def.Volumes = []string{"n8n_data:/home/node/.n8n"}
		def.DependsOn = []string{stack.ServicePostgres.String()}

	case stack.ServiceNtfy:
		def.Image = "binwiederhier/ntfy:latest"
		def.Command = []string{"serve"}
		def.Environment = map[string]string{
			"NTFY_CACHE_FILE":   "/var/cache/ntfy/cache.db",
			"NTFY_AUTH_FILE":    "/var/lib/ntfy/user.db",
			"NTFY_BEHIND_PROXY": "true",
		}
		def.Volumes = []string{
			"ntfy_cache:/var/cache/ntfy",
			"ntfy_data:/var/lib/ntfy",
		}

	case stack.ServiceFetcher:
		def.Build = "./fetcher"
		def.Image = "stackpilot-fetcher:latest"
		def.Environment = map[string]string{
			"PORT": fmt.Sprintf("%d", svc.ContainerPort()),
		}
	}

	return def
}

// topologicalSort sorts services based on dependencies.
func (g *Generator) topologicalSort(services map[string]*Service) ([]string, error) {
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range services {
		graph[name] = []string{}
		inDegree[name] = 0
	}

	for name, svc := range services {
		for _, dep := range svc.DependsOn {
			if _, exists := services[dep]; exists {
				graph[dep] = append(graph[dep], name)
				inDegree[name]++
			}
		}
	}

	// Kahn's algorithm
	queue := []string{}
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}

	result := []string{}
	for len(queue) > 0 {
		// Sort queue for deterministic output
		sort.Strings(queue)

		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, neighbor := range graph[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(services) {
		return nil, fmt.Errorf("circular dependency detected")
	}

	return result, nil
}

// generateYAML generates the YAML content for the compose file.
func (g *Generator) generateYAML(compose *ComposeFile) (string, error) {
	var buf bytes.Buffer

	buf.WriteString("# Generated by stackpilot. Changes are overwritten on the next deployment.\n")
	buf.WriteString(fmt.Sprintf("name: %s\n\n", g.projectName))

	buf.WriteString("services:\n")
	for _, name := range compose.Order {
		if err := g.writeService(&buf, compose.Services[name]); err != nil {
			return "", err
		}
	}

	if len(compose.Networks) > 0 {
		buf.WriteString("networks:\n")

		networkNames := make([]string, 0, len(compose.Networks))
		for name := range compose.Networks {
			networkNames = append(networkNames, name)
		}
		sort.Strings(networkNames)

		for _, name := range networkNames {
			net := compose.Networks[name]
			buf.WriteString(fmt.Sprintf("  %s:\n", name))
			if net.Driver != "" {
				buf.WriteString(fmt.Sprintf("    driver: %s\n", net.Driver))
			}
			if net.Internal {
				buf.WriteString("    internal: true\n")
			}
			writeMap(&buf, "    labels:\n", "      ", net.Labels)
		}
	}

	if len(compose.Volumes) > 0 {
		buf.WriteString("\nvolumes:\n")

		volumeNames := make([]string, 0, len(compose.Volumes))
		for name := range compose.Volumes {
			volumeNames = append(volumeNames, name)
		}
		sort.Strings(volumeNames)

		for _, name := range volumeNames {
			vol := compose.Volumes[name]
			buf.WriteString(fmt.Sprintf("  %s:\n", name))
			if vol.Driver != "" {
				buf.WriteString(fmt.Sprintf("    driver: %s\n", vol.Driver))
			}
		}
	}

	return buf.String(), nil
}

// writeService writes a service definition to the buffer.
func (g *Generator) writeService(buf *bytes.Buffer, svc *Service) error {
	if svc.Image == "" && svc.Build == "" {
		return fmt.Errorf("service %s has neither image nor build context", svc.Name)
	}

	buf.WriteString(fmt.Sprintf("  %s:\n", svc.Name))
	if svc.Build != "" {
		buf.WriteString(fmt.Sprintf("    build: %s\n", svc.Build))
	}
	if svc.Image != "" {
		buf.WriteString(fmt.Sprintf("    image: %s\n", svc.Image))
	}
	if svc.ContainerName != "" {
		buf.WriteString(fmt.Sprintf("    container_name: %s\n", svc.ContainerName))
	}
	if svc.Restart != "" {
		buf.WriteString(fmt.Sprintf("    restart: %s\n", svc.Restart))
	}

	if len(svc.Command) > 0 {
		buf.WriteString("    command:\n")
		for _, cmd := range svc.Command {
			buf.WriteString(fmt.Sprintf("      - %s\n", cmd))
		}
	}

	if len(svc.EnvFile) > 0 {
		buf.WriteString("    env_file:\n")
		for _, f := range svc.EnvFile {
			buf.WriteString(fmt.Sprintf("      - %s\n", f))
		}
	}

	writeMap(buf, "    environment:\n", "      ", svc.Environment)

	if len(svc.Ports) > 0 {
		buf.WriteString("    ports:\n")
		for _, port := range svc.Ports {
			buf.WriteString(fmt.Sprintf("      - \"%s\"\n", port))
		}
	}

	if len(svc.Volumes) > 0 {
		buf.WriteString("    volumes:\n")
		for _, vol := range svc.Volumes {
			buf.WriteString(fmt.Sprintf("      - %s\n", vol))
		}
	}

	if len(svc.Networks) > 0 {
		buf.WriteString("    networks:\n")
		for _, net := range svc.Networks {
			buf.WriteString(fmt.Sprintf("      - %s\n", net))
		}
	}

	if len(svc.DependsOn) > 0 {
		buf.WriteString("    depends_on:\n")
		for _, dep := range svc.DependsOn {
			buf.WriteString(fmt.Sprintf("      - %s\n", dep))
		}
	}

	if svc.HealthCheck != nil {
		buf.WriteString("    healthcheck:\n")
		if len(svc.HealthCheck.Test) > 0 {
			buf.WriteString("      test:\n")
			for _, t := range svc.HealthCheck.Test {
				buf.WriteString(fmt.Sprintf("        - \"%s\"\n", escapeYAML(t)))
			}
		}
		if svc.HealthCheck.Interval != "" {
			buf.WriteString(fmt.Sprintf("      interval: %s\n", svc.HealthCheck.Interval))
		}
		if svc.HealthCheck.Timeout != "" {
			buf.WriteString(fmt.Sprintf("      timeout: %s\n", svc.HealthCheck.Timeout))
		}
		if svc.HealthCheck.Retries > 0 {
			buf.WriteString(fmt.Sprintf("      retries: %d\n", svc.HealthCheck.Retries))
		}
		if svc.HealthCheck.StartPeriod != "" {
			buf.WriteString(fmt.Sprintf("      start_period: %s\n", svc.HealthCheck.StartPeriod))
		}
	}

	buf.WriteString("\n")
	return nil
}

// writeMap writes a sorted key/value block, quoting values that YAML would
// otherwise misread.
func writeMap(buf *bytes.Buffer, header, indent string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	buf.WriteString(header)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		if v == "" || v == "true" || v == "false" || isNumber(v) || strings.ContainsAny(v, " \n\t:{}[]!@#$%^&*") {
			buf.WriteString(fmt.Sprintf("%s%s: \"%s\"\n", indent, k, escapeYAML(v)))
		} else {
			buf.WriteString(fmt.Sprintf("%s%s: %s\n", indent, k, v))
		}
	}
}

func isNumber(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// escapeYAML escapes special characters in YAML strings.
func escapeYAML(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

// ComposeFile represents a complete docker-compose.yml structure.
type ComposeFile struct {
	Order    []string
	Services map[string]*Service
	Networks map[string]*Network
	Volumes  map[string]*Volume
}

// Service represents a Docker Compose service.
type Service struct {
	Name          string
	Image         string
	Build         string
	ContainerName string
	Environment   map[string]string
	EnvFile       []string
	Ports         []string
	Volumes       []string
	Networks      []string
	DependsOn     []string
	Command       []string
	HealthCheck   *HealthCheck
	Restart       string
}

// HealthCheck represents a health check configuration.
type HealthCheck struct {
	Test        []string
	Interval    string
	Timeout     string
	Retries     int
	StartPeriod string
}

// Network represents a Docker network.
type Network struct {
	Driver   string
	Internal bool
	Labels   map[string]string
}

// Volume represents a Docker volume.
type Volume struct {
	Name   string
	Driver string
}

package preflight

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/domain/stack"
)

var socketStates = map[string]bool{
	"LISTEN":      true,
	"UNCONN":      true,
	"ESTAB":       true,
	"ESTABLISHED": true,
}

// ParseListeningPorts parses `ss -tulnp` or `netstat -tulnp` output. The
// first line is a header. Lines that cannot be parsed are skipped.
func ParseListeningPorts(output string) []host.ListeningPort {
	var ports []host.ListeningPort

	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		// ss puts the state second and the local address fifth; netstat
		// puts a numeric Recv-Q second and the local address fourth.
		idx := 4
		if isNumeric(fields[1]) {
			idx = 3
		}
		if idx >= len(fields) {
			continue
		}

		port, ok := portFromAddress(fields[idx])
		if !ok {
			continue
		}

		ports = append(ports, host.ListeningPort{
			Port:     port,
			Protocol: protocolOf(fields[0]),
			Process:  processOf(fields[idx+1:]),
			State:    stateOf(fields),
		})
	}

	return ports
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// portFromAddress extracts the trailing :port of a local address such as
// 0.0.0.0:22, [::]:80 or *:5432.
func portFromAddress(addr string) (int, bool) {
	i := strings.LastIndex(addr, ":")
	if i < 0 || i == len(addr)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

func protocolOf(field string) string {
	f := strings.ToLower(field)
	switch {
	case strings.HasPrefix(f, "udp"):
		return "udp"
	default:
		return "tcp"
	}
}

func stateOf(fields []string) string {
	for _, f := range fields {
		if socketStates[f] {
			return f
		}
	}
	return "LISTEN"
}

// processOf finds the owning process in the columns after the local address:
// ss prints users:(("sshd",pid=1,fd=3)), netstat prints 812/sshd.
func processOf(rest []string) string {
	for _, f := range rest {
		if strings.HasPrefix(f, "users:((\"") {
			name := strings.TrimPrefix(f, "users:((\"")
			if j := strings.Index(name, "\""); j >= 0 {
				return name[:j]
			}
			return name
		}
		if j := strings.Index(f, "/"); j > 0 && isNumeric(f[:j]) {
			return f[j+1:]
		}
	}
	return ""
}

// ParseContainers parses name|image|status|ports lines. Missing trailing
// fields become empty strings.
func ParseContainers(output string) []host.Container {
	var containers []host.Container
	for _, line := range ParseLines(output) {
		parts := strings.SplitN(line, "|", 4)
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		containers = append(containers, host.Container{
			Name:   strings.TrimSpace(parts[0]),
			Image:  strings.TrimSpace(parts[1]),
			Status: strings.TrimSpace(parts[2]),
			Ports:  strings.TrimSpace(parts[3]),
		})
	}
	return containers
}

// ParseLines returns the trimmed, non-empty lines of output.
func ParseLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseRuntime interprets the version probes.
func ParseRuntime(versionOut, composeOut string) host.Runtime {
	version := strings.TrimSpace(versionOut)
	rt := host.Runtime{
		Installed:  version != "" && !strings.Contains(version, sentinelNotInstalled),
		Containers: []host.Container{},
		Networks:   []string{},
		Volumes:    []string{},
	}
	if !rt.Installed {
		return rt
	}
	rt.Version = version
	if compose := strings.TrimSpace(composeOut); compose != "" && !strings.Contains(compose, sentinelNotInstalled) {
		rt.ComposeVersion = compose
	}
	return rt
}

var nginxConfigPattern = regexp.MustCompile(`configuration file (\S+) (?:test is successful|syntax is ok)`)

// nativeProxy interprets the native probe output for kind.
func nativeProxy(kind host.ProxyKind, output string) (bool, string) {
	if kind == host.ProxyNginx {
		if !strings.Contains(output, "test is successful") && !strings.Contains(output, "syntax is ok") {
			return false, ""
		}
		if m := nginxConfigPattern.FindStringSubmatch(output); m != nil {
			return true, m[1]
		}
		return true, ""
	}

	trimmed := strings.TrimSpace(output)
	if trimmed == "" || strings.Contains(trimmed, sentinelNotInstalled) {
		return false, ""
	}
	for _, line := range ParseLines(trimmed) {
		if strings.HasPrefix(line, "/etc/") {
			return true, line
		}
	}
	return true, ""
}

// DetectProxy picks the first proxy, in nginx, caddy, traefik order, that is
// either installed natively or running as a container whose name contains
// the proxy's name.
func DetectProxy(native map[host.ProxyKind]string, containers []host.Container) host.Proxy {
	for _, kind := range host.ProxyDetectionOrder {
		if found, configPath := nativeProxy(kind, native[kind]); found {
			return host.Proxy{Kind: kind, ConfigPath: configPath}
		}
		for _, c := range containers {
			if strings.Contains(strings.ToLower(c.Name), string(kind)) {
				return host.Proxy{Kind: kind}
			}
		}
	}
	return host.Proxy{Kind: host.ProxyNone}
}

// DetectExistingServices flags managed services that already have a
// container, by case-insensitive name fragment.
func DetectExistingServices(containers []host.Container) map[stack.Service]bool {
	existing := make(map[stack.Service]bool, len(stack.Services()))
	for _, svc := range stack.Services() {
		existing[svc] = false
		fragment := strings.ToLower(svc.NameFragment())
		for _, c := range containers {
			if strings.Contains(strings.ToLower(c.Name), fragment) {
				existing[svc] = true
				break
			}
		}
	}
	return existing
}

func orUnknown(output string) string {
	s := strings.TrimSpace(output)
	if s == "" {
		return sentinelUnknown
	}
	return s
}

package preflight

import "github.com/homeport/stackpilot/internal/domain/host"

// Remote probes. Every probe is read-only and carries its own shell fallback,
// so a failing tool yields sentinel text instead of a channel error.
const (
	cmdDistribution = `. /etc/os-release 2>/dev/null && echo "$PRETTY_NAME" || echo 'unknown'`
	cmdKernel       = `uname -r 2>/dev/null || echo 'unknown'`
	cmdHostname     = `hostname 2>/dev/null || echo 'unknown'`

	cmdListeningPorts = `ss -tulnp 2>/dev/null || netstat -tulnp 2>/dev/null || echo 'failed'`

	cmdRuntimeVersion = `docker --version 2>/dev/null || echo 'not installed'`
	cmdComposeVersion = `docker compose version 2>/dev/null || docker-compose --version 2>/dev/null || echo 'not installed'`
	cmdContainers     = `docker ps -a --format '{{.Names}}|{{.Image}}|{{.Status}}|{{.Ports}}' 2>/dev/null || echo ''`
	cmdNetworks       = `docker network ls --format '{{.Name}}' 2>/dev/null || echo ''`
	cmdVolumes        = `docker volume ls --format '{{.Name}}' 2>/dev/null || echo ''`

	cmdDisk   = `df -h / 2>/dev/null | awk 'NR==2 {print $4 " free of " $2}' || echo 'unknown'`
	cmdMemory = `free -h 2>/dev/null | awk '/^Mem:/ {print $7 " free of " $2}' || echo 'unknown'`
)

// proxyCommands probe for a native installation of each supported proxy.
var proxyCommands = map[host.ProxyKind]string{
	host.ProxyNginx:   `nginx -t 2>&1 || echo 'not installed'`,
	host.ProxyCaddy:   `command -v caddy 2>/dev/null && (ls /etc/caddy/Caddyfile 2>/dev/null || true) || echo 'not installed'`,
	host.ProxyTraefik: `command -v traefik 2>/dev/null && (ls /etc/traefik/traefik.yml /etc/traefik/traefik.toml 2>/dev/null || true) || echo 'not installed'`,
}

// Sentinels written by the fallbacks above.
const (
	sentinelNotInstalled = "not installed"
	sentinelUnknown      = "unknown"
)

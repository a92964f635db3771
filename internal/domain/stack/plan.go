package stack

import "fmt"

// Ports maps each managed service to a host port.
type Ports map[Service]int

// DefaultPorts returns the preferred port table.
func DefaultPorts() Ports {
	ports := make(Ports, len(allServices))
	for _, svc := range allServices {
		ports[svc] = svc.PreferredPort()
	}
	return ports
}

// Postgres returns the database port.
func (p Ports) Postgres() int { return p[ServicePostgres] }

// N8N returns the workflow engine port.
func (p Ports) N8N() int { return p[ServiceN8N] }

// Ntfy returns the notification server port.
func (p Ports) Ntfy() int { return p[ServiceNtfy] }

// Fetcher returns the fetch microservice port.
func (p Ports) Fetcher() int { return p[ServiceFetcher] }

// Validate checks that every managed service has a usable port.
func (p Ports) Validate() error {
	for _, svc := range allServices {
		port, ok := p[svc]
		if !ok {
			return fmt.Errorf("no port assigned to %s", svc)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("port %d for %s is out of range", port, svc)
		}
	}
	for svc := range p {
		if !svc.IsValid() {
			return fmt.Errorf("unknown service %q in port table", svc)
		}
	}
	return nil
}

// Plan is the placement plan derived from one scan. It is recomputed on every
// scan and replaces the previous plan wholesale.
type Plan struct {
	Ports              Ports    `json:"ports" yaml:"ports"`
	ReuseExistingProxy bool     `json:"reuse_existing_proxy" yaml:"reuse_existing_proxy"`
	ProxyKind          string   `json:"proxy_kind" yaml:"proxy_kind"`
	ProxyConfig        string   `json:"proxy_config,omitempty" yaml:"proxy_config,omitempty"`
	Warnings           []string `json:"warnings" yaml:"warnings"`
	ReadyToDeploy      bool     `json:"ready_to_deploy" yaml:"ready_to_deploy"`
}

// ServiceStatus is the health record of one managed service.
type ServiceStatus struct {
	Running bool   `json:"running" yaml:"running"`
	Healthy bool   `json:"healthy" yaml:"healthy"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
}

// StatusMap holds a status record per managed service.
type StatusMap map[Service]ServiceStatus

// AllDown returns a status map reporting every service as not running.
func AllDown() StatusMap {
	m := make(StatusMap, len(allServices))
	for _, svc := range allServices {
		m[svc] = ServiceStatus{}
	}
	return m
}

// HealthyCount returns the number of healthy services.
func (m StatusMap) HealthyCount() int {
	n := 0
	for _, st := range m {
		if st.Healthy {
			n++
		}
	}
	return n
}

// Outcome is the result of one deployment attempt.
type Outcome struct {
	Success  bool      `json:"success" yaml:"success"`
	Message  string    `json:"message" yaml:"message"`
	Log      []string  `json:"log" yaml:"log"`
	Services StatusMap `json:"services" yaml:"services"`
}

// Logf appends a formatted step description to the outcome log.
func (o *Outcome) Logf(format string, args ...any) {
	o.Log = append(o.Log, fmt.Sprintf(format, args...))
}

package compose

// NetworkConfig manages network configuration for Docker Compose.
type NetworkConfig struct {
	defaultName string
	networks    map[string]*Network
}

// NewNetworkConfig creates a network configuration with one bridge network
// named after the project, shared by every service.
func NewNetworkConfig(projectName string) *NetworkConfig {
	nc := &NetworkConfig{
		defaultName: projectName,
		networks:    make(map[string]*Network),
	}

	nc.networks[projectName] = &Network{
		Driver: "bridge",
		Labels: map[string]string{
			"com.stackpilot.network": "default",
		},
	}

	return nc
}

// Default returns the name of the shared network.
func (nc *NetworkConfig) Default() string {
	return nc.defaultName
}

// GetNetworks returns all networks.
func (nc *NetworkConfig) GetNetworks() map[string]*Network {
	return nc.networks
}

// HasNetwork checks if a network exists.
func (nc *NetworkConfig) HasNetwork(name string) bool {
	_, ok := nc.networks[name]
	return ok
}

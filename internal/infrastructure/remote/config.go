// Package remote provides the authenticated command channel to the managed
// host: shell command execution and file upload over a single SSH connection.
package remote

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/homeport/stackpilot/internal/domain/errs"
)

// DefaultPort is the SSH port used when none is configured.
const DefaultPort = 22

// DefaultTimeout bounds the TCP connect and SSH handshake.
const DefaultTimeout = 30 * time.Second

// Config holds the connection settings for the managed host.
type Config struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port" mapstructure:"port"`
	User           string        `json:"user" mapstructure:"user"`
	Password       string        `json:"-" mapstructure:"password"`
	KeyPath        string        `json:"key_path" mapstructure:"key_path"`
	KnownHostsPath string        `json:"known_hosts" mapstructure:"known_hosts"`
	Timeout        time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Validate reports a ConfigurationError when required settings are absent.
// It never touches the network.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errs.ErrMissingHost
	}
	if strings.TrimSpace(c.User) == "" {
		return errs.ErrMissingUser
	}
	if c.Password == "" && c.KeyPath == "" {
		return errs.ErrMissingCredential
	}
	if c.Port < 0 || c.Port > 65535 {
		return errs.NewConfigurationError("ssh.port", fmt.Sprintf("invalid port %d", c.Port))
	}
	return nil
}

// Address returns host:port for dialing.
func (c Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

package remote

import (
	"context"
	"os"
)

// Session is an open channel to the managed host. Implementations must allow
// Execute to be called from several goroutines at once.
type Session interface {
	// Host returns the address the session is connected to, without port.
	Host() string

	// Execute runs commandLine through the remote shell and returns combined
	// stdout and stderr. A non-zero exit status is not an error; only
	// channel-level failures are.
	Execute(ctx context.Context, commandLine string) (string, error)

	// MkdirAll creates path and any missing parents.
	MkdirAll(ctx context.Context, path string) error

	// Upload writes content to path, replacing any existing file.
	Upload(ctx context.Context, path, content string, mode os.FileMode) error

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer opens sessions. The control surface depends on this interface so
// tests can substitute an in-memory host.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}

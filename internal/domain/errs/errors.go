// Package errs defines the error taxonomy shared by scan, plan, deploy and
// health operations.
package errs

import "fmt"

// Sentinel errors. Compare with errors.Is.
var (
	// ErrNoScan is returned when a deployment is requested before any scan.
	ErrNoScan = &PreconditionError{Message: "no scan has been performed yet"}

	// ErrNotReady is returned when the last scan reported the host not ready.
	ErrNotReady = &PreconditionError{Message: "host is not ready for deployment: container runtime not installed"}

	// ErrMissingHost is returned when no remote host is configured.
	ErrMissingHost = &ConfigurationError{Field: "ssh.host", Message: "remote host is not configured"}

	// ErrMissingUser is returned when no remote username is configured.
	ErrMissingUser = &ConfigurationError{Field: "ssh.user", Message: "remote username is not configured"}

	// ErrMissingCredential is returned when neither a password nor a key is configured.
	ErrMissingCredential = &ConfigurationError{Field: "ssh.password", Message: "neither a password nor a private key is configured"}
)

// ConnectionError reports that the remote session could not be established.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError wraps a dial failure.
func NewConnectionError(host string, err error) error {
	return &ConnectionError{Host: host, Err: err}
}

// ExecutionError reports a channel-level failure to dispatch a command or
// transfer a file. A non-zero remote exit status is not an ExecutionError.
type ExecutionError struct {
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing %q: %v", e.Command, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError wraps a dispatch failure for command.
func NewExecutionError(command string, err error) error {
	return &ExecutionError{Command: command, Err: err}
}

// ConfigurationError reports missing or invalid connection settings. It is
// raised before any remote attempt is made.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Field)
}

// Is matches configuration errors on their field so that wrapped copies
// compare equal to the sentinels.
func (e *ConfigurationError) Is(target error) bool {
	t, ok := target.(*ConfigurationError)
	if !ok {
		return false
	}
	return t.Field == e.Field && t.Message == e.Message
}

// NewConfigurationError creates a configuration error for field.
func NewConfigurationError(field, message string) error {
	return &ConfigurationError{Field: field, Message: message}
}

// PreconditionError reports an operation requested in a state that does not
// allow it.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// NewPreconditionError creates a precondition error.
func NewPreconditionError(format string, args ...any) error {
	return &PreconditionError{Message: fmt.Sprintf(format, args...)}
}

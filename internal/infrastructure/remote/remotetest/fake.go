// Package remotetest provides an in-memory remote host for tests.
package remotetest

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/infrastructure/remote"
)

type response struct {
	match  string
	output string
	err    error
}

// Host is a fake managed host. Commands are answered by the first registered
// response whose match string is a substring of the command line. `test -f`
// checks are answered from the uploaded files.
type Host struct {
	Name string

	mu          sync.Mutex
	responses   []response
	uploadErrs  map[string]error
	files       map[string]string
	modes       map[string]os.FileMode
	dirs        map[string]bool
	commands    []string
	closeCount  int
	uploadCount int
}

// NewHost creates an empty fake host.
func NewHost(name string) *Host {
	return &Host{
		Name:       name,
		uploadErrs: make(map[string]error),
		files:      make(map[string]string),
		modes:      make(map[string]os.FileMode),
		dirs:       make(map[string]bool),
	}
}

// On registers output for commands containing match.
func (h *Host) On(match, output string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, response{match: match, output: output})
	return h
}

// FailOn makes commands containing match fail at the channel level.
func (h *Host) FailOn(match string, err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, response{match: match, err: err})
	return h
}

// FailUpload makes uploads to path fail.
func (h *Host) FailUpload(path string, err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploadErrs[path] = err
	return h
}

// PutFile seeds a file as if it already existed on the host.
func (h *Host) PutFile(path, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[path] = content
}

// File returns the content of an uploaded or seeded file.
func (h *Host) File(path string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	content, ok := h.files[path]
	return content, ok
}

// Mode returns the permissions an uploaded file was written with.
func (h *Host) Mode(path string) os.FileMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.modes[path]
}

// HasDir reports whether MkdirAll was called for path.
func (h *Host) HasDir(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirs[path]
}

// Commands returns every executed command line in order.
func (h *Host) Commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.commands))
	copy(out, h.commands)
	return out
}

// Ran reports whether a command containing match was executed.
func (h *Host) Ran(match string) bool {
	for _, cmd := range h.Commands() {
		if strings.Contains(cmd, match) {
			return true
		}
	}
	return false
}

// Uploads returns the number of successful uploads.
func (h *Host) Uploads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.uploadCount
}

// Closed returns how many times Close was called.
func (h *Host) Closed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeCount
}

// Host implements remote.Session.
func (h *Host) Host() string {
	return h.Name
}

// Execute implements remote.Session.
func (h *Host) Execute(ctx context.Context, commandLine string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errs.NewExecutionError(commandLine, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, commandLine)

	if strings.HasPrefix(commandLine, "test -f ") {
		path := strings.Fields(commandLine)[2]
		if _, ok := h.files[path]; ok {
			return "exists\n", nil
		}
		return "missing\n", nil
	}

	for _, r := range h.responses {
		if strings.Contains(commandLine, r.match) {
			if r.err != nil {
				return "", errs.NewExecutionError(commandLine, r.err)
			}
			return r.output, nil
		}
	}
	return "", nil
}

// MkdirAll implements remote.Session.
func (h *Host) MkdirAll(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirs[path] = true
	return nil
}

// Upload implements remote.Session.
func (h *Host) Upload(_ context.Context, path, content string, mode os.FileMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err, ok := h.uploadErrs[path]; ok {
		return errs.NewExecutionError("upload "+path, err)
	}
	h.files[path] = content
	h.modes[path] = mode
	h.uploadCount++
	return nil
}

// Close implements remote.Session.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeCount++
	return nil
}

// ErrUnreachable is returned by a Dialer configured to fail.
var ErrUnreachable = errors.New("connection refused")

// Dialer hands out the same fake host on every dial.
type Dialer struct {
	Target *Host
	Err    error

	mu    sync.Mutex
	dials int
}

// NewDialer returns a dialer for target.
func NewDialer(target *Host) *Dialer {
	return &Dialer{Target: target}
}

// Dial implements remote.Dialer. Configuration is validated first, like the
// real dialer.
func (d *Dialer) Dial(_ context.Context, cfg remote.Config) (remote.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	if d.Err != nil {
		return nil, errs.NewConnectionError(cfg.Host, d.Err)
	}
	return d.Target, nil
}

// Dials returns the number of dial attempts that passed validation.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

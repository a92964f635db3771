package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"sync"

	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/pkg/logger"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHDialer opens sessions with golang.org/x/crypto/ssh.
type SSHDialer struct{}

// NewSSHDialer creates a dialer for real hosts.
func NewSSHDialer() *SSHDialer {
	return &SSHDialer{}
}

// Dial validates cfg, connects and authenticates. Every failure after
// validation is a ConnectionError.
func (d *SSHDialer) Dial(ctx context.Context, cfg Config) (Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientConfig, err := clientConfig(cfg)
	if err != nil {
		return nil, errs.NewConnectionError(cfg.Host, err)
	}

	addr := cfg.Address()
	dialer := &net.Dialer{Timeout: cfg.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.NewConnectionError(cfg.Host, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, errs.NewConnectionError(cfg.Host, err)
	}

	logger.Debug("SSH session established", "host", cfg.Host, "user", cfg.User)
	return &sshSession{
		host:   cfg.Host,
		client: ssh.NewClient(c, chans, reqs),
	}, nil
}

func clientConfig(cfg Config) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if cfg.KeyPath != "" {
		key, err := os.ReadFile(expandPath(cfg.KeyPath))
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(expandPath(cfg.KnownHostsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.timeout(),
	}, nil
}

type sshSession struct {
	host   string
	client *ssh.Client

	sftpMu sync.Mutex
	sftp   *sftp.Client

	closeOnce sync.Once
	closeErr  error
}

func (s *sshSession) Host() string {
	return s.host
}

// Execute opens a fresh SSH channel per command; the connection multiplexes
// them, so concurrent calls are fine up to the server's MaxSessions.
func (s *sshSession) Execute(ctx context.Context, commandLine string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", errs.NewExecutionError(commandLine, err)
	}
	defer func() { _ = session.Close() }()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(commandLine)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return "", errs.NewExecutionError(commandLine, ctx.Err())
	case r := <-done:
		if r.err != nil && !isRemoteExit(r.err) {
			return string(r.out), errs.NewExecutionError(commandLine, r.err)
		}
		return string(r.out), nil
	}
}

// isRemoteExit reports whether err only describes how the remote command
// exited, as opposed to a transport failure.
func isRemoteExit(err error) bool {
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return true
	}
	var missing *ssh.ExitMissingError
	return errors.As(err, &missing)
}

func (s *sshSession) sftpClient() (*sftp.Client, error) {
	s.sftpMu.Lock()
	defer s.sftpMu.Unlock()

	if s.sftp != nil {
		return s.sftp, nil
	}
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	s.sftp = client
	return client, nil
}

func (s *sshSession) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return errs.NewExecutionError("mkdir "+dir, err)
	}
	client, err := s.sftpClient()
	if err != nil {
		return errs.NewExecutionError("mkdir "+dir, err)
	}
	if err := client.MkdirAll(dir); err != nil {
		return errs.NewExecutionError("mkdir "+dir, err)
	}
	return nil
}

func (s *sshSession) Upload(ctx context.Context, filePath, content string, mode os.FileMode) error {
	op := "upload " + filePath
	if err := ctx.Err(); err != nil {
		return errs.NewExecutionError(op, err)
	}
	client, err := s.sftpClient()
	if err != nil {
		return errs.NewExecutionError(op, err)
	}

	if dir := path.Dir(filePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return errs.NewExecutionError(op, err)
		}
	}

	file, err := client.Create(filePath)
	if err != nil {
		return errs.NewExecutionError(op, err)
	}
	defer func() { _ = file.Close() }()

	if _, err := io.WriteString(file, content); err != nil {
		return errs.NewExecutionError(op, err)
	}
	if mode != 0 {
		if err := client.Chmod(filePath, mode); err != nil {
			return errs.NewExecutionError(op, err)
		}
	}
	return nil
}

func (s *sshSession) Close() error {
	s.closeOnce.Do(func() {
		s.sftpMu.Lock()
		if s.sftp != nil {
			_ = s.sftp.Close()
			s.sftp = nil
		}
		s.sftpMu.Unlock()
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

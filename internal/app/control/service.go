// Package control implements the operations behind the dashboard and the
// CLI: scan, deploy and health check against the configured host.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/homeport/stackpilot/internal/app/deploy"
	"github.com/homeport/stackpilot/internal/app/health"
	"github.com/homeport/stackpilot/internal/app/placement"
	"github.com/homeport/stackpilot/internal/app/preflight"
	"github.com/homeport/stackpilot/internal/app/status"
	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/bundle"
	"github.com/homeport/stackpilot/internal/infrastructure/generator/proxy"
	"github.com/homeport/stackpilot/internal/infrastructure/remote"
	"github.com/homeport/stackpilot/internal/pkg/logger"
)

// Options configures a Service.
type Options struct {
	// Remote is the connection to the managed host.
	Remote remote.Config

	// SettleDelay is the wait between starting the stack and probing it.
	SettleDelay time.Duration

	// Dialer opens sessions. Defaults to an SSH dialer.
	Dialer remote.Dialer

	// Store receives status updates. Defaults to a fresh store.
	Store *status.Store

	// Reporter additionally receives deployment events.
	Reporter deploy.Reporter
}

// ScanResult is the snapshot and plan of the last scan.
type ScanResult struct {
	OperationID string      `json:"operation_id" yaml:"operation_id"`
	Facts       *host.Facts `json:"facts" yaml:"facts"`
	Plan        *stack.Plan `json:"plan" yaml:"plan"`
}

// Service runs operations against one host and records their outcome in
// the status store. Callers should not run overlapping operations.
type Service struct {
	remote    remote.Config
	dialer    remote.Dialer
	collector *preflight.Collector
	executor  *deploy.Executor
	prober    *health.Prober
	builder   *bundle.Builder
	store     *status.Store
	reporter  deploy.Reporter

	mu   sync.RWMutex
	last *ScanResult
}

// NewService creates a control service.
func NewService(opts Options) *Service {
	s := &Service{
		remote:    opts.Remote,
		dialer:    opts.Dialer,
		collector: preflight.NewCollector(),
		prober:    health.NewProber(),
		builder:   bundle.NewBuilder(),
		store:     opts.Store,
		reporter:  opts.Reporter,
	}
	if s.dialer == nil {
		s.dialer = remote.NewSSHDialer()
	}
	if s.store == nil {
		s.store = status.NewStore()
	}
	s.executor = deploy.NewExecutor(s.prober,
		deploy.WithSettleDelay(opts.SettleDelay),
		deploy.WithReporter(s.onDeployEvent),
	)
	return s
}

// Store returns the status store.
func (s *Service) Store() *status.Store {
	return s.store
}

// Status returns the current status record.
func (s *Service) Status() status.Status {
	return s.store.Get()
}

// Host returns the configured remote host.
func (s *Service) Host() string {
	return s.remote.Host
}

// LastScan returns the result of the last successful scan.
func (s *Service) LastScan() (*ScanResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}

// Scan collects a fresh snapshot and replaces the last plan.
func (s *Service) Scan(ctx context.Context) (*ScanResult, error) {
	opID := uuid.New().String()
	log := logger.WithOperation("scan", s.remote.Host, opID)

	if err := s.remote.Validate(); err != nil {
		return nil, s.fail(opID, err)
	}

	s.store.Update(func(st *status.Status) {
		st.State = status.StateScanning
		st.Message = fmt.Sprintf("Scanning %s", s.remote.Host)
		st.OperationID = opID
		st.Step = ""
		st.Progress = 0
	})

	session, err := s.dialer.Dial(ctx, s.remote)
	if err != nil {
		return nil, s.fail(opID, err)
	}
	defer func() { _ = session.Close() }()

	facts, err := s.collector.Collect(ctx, session)
	if err != nil {
		return nil, s.fail(opID, err)
	}

	result := &ScanResult{
		OperationID: opID,
		Facts:       facts,
		Plan:        placement.Plan(facts),
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	message := "Scan complete: ready to deploy"
	if !result.Plan.ReadyToDeploy {
		message = "Scan complete: container runtime not installed"
	}
	scannedAt := facts.ScannedAt
	s.store.Update(func(st *status.Status) {
		st.State = status.StateSuccess
		st.Message = message
		st.OperationID = opID
		st.LastScan = &scannedAt
		st.Progress = 1
	})

	log.Info("Scan finished", "ready", result.Plan.ReadyToDeploy, "warnings", len(result.Plan.Warnings))
	return result, nil
}

// Deploy pushes the stack using the last plan. Precondition and
// configuration errors are returned before any connection is made. A failed
// deployment is reported in the outcome.
func (s *Service) Deploy(ctx context.Context) (*stack.Outcome, error) {
	opID := uuid.New().String()
	log := logger.WithOperation("deploy", s.remote.Host, opID)

	last, ok := s.LastScan()
	if !ok {
		return nil, s.fail(opID, errs.ErrNoScan)
	}
	if !last.Plan.ReadyToDeploy {
		return nil, s.fail(opID, errs.ErrNotReady)
	}
	if err := s.remote.Validate(); err != nil {
		return nil, s.fail(opID, err)
	}

	s.store.Update(func(st *status.Status) {
		st.State = status.StateDeploying
		st.Message = fmt.Sprintf("Deploying to %s", s.remote.Host)
		st.OperationID = opID
		st.Step = ""
		st.Progress = 0
	})

	session, err := s.dialer.Dial(ctx, s.remote)
	if err != nil {
		return nil, s.fail(opID, err)
	}
	defer func() { _ = session.Close() }()

	outcome, err := s.executor.Deploy(ctx, session, last.Plan)
	if err != nil {
		return nil, s.fail(opID, err)
	}

	deployedAt := time.Now().UTC()
	s.store.Update(func(st *status.Status) {
		st.OperationID = opID
		st.Message = outcome.Message
		st.Services = outcome.Services
		st.LastDeploy = &deployedAt
		if outcome.Success {
			st.State = status.StateSuccess
			st.Progress = 1
		} else {
			st.State = status.StateError
		}
	})

	log.Info("Deploy finished", "success", outcome.Success, "healthy", outcome.Services.HealthyCount())
	return outcome, nil
}

// CheckHealth probes every service using the ports of the last plan, or the
// default ports when no scan has been run.
func (s *Service) CheckHealth(ctx context.Context) (stack.StatusMap, error) {
	opID := uuid.New().String()

	if err := s.remote.Validate(); err != nil {
		return nil, s.fail(opID, err)
	}

	ports := stack.DefaultPorts()
	if last, ok := s.LastScan(); ok {
		ports = last.Plan.Ports
	}

	session, err := s.dialer.Dial(ctx, s.remote)
	if err != nil {
		return nil, s.fail(opID, err)
	}
	defer func() { _ = session.Close() }()

	statuses, err := s.prober.Probe(ctx, session, ports)
	if err != nil {
		return nil, s.fail(opID, err)
	}

	s.store.Update(func(st *status.Status) {
		st.OperationID = opID
		st.Services = statuses
		st.Message = fmt.Sprintf("Health check: %d/%d services healthy", statuses.HealthyCount(), len(stack.Services()))
		if st.State == status.StateError || st.State == status.StateIdle {
			st.State = status.StateSuccess
		}
	})
	return statuses, nil
}

// ProxyConfig renders the proxy snippet for kind with the last plan's ports.
// An empty kind selects the detected proxy.
func (s *Service) ProxyConfig(kind host.ProxyKind) (string, error) {
	last, ok := s.LastScan()
	if !ok {
		return "", errs.ErrNoScan
	}
	if kind == "" {
		kind = last.Facts.Proxy.Kind
	}
	if !proxy.Supported(kind) {
		return "", errs.NewPreconditionError("no proxy configuration is available for %q", kind)
	}
	return proxy.Render(kind, last.Plan.Ports)
}

// ReferenceDoc renders the reference document for the last plan.
func (s *Service) ReferenceDoc() (string, error) {
	last, ok := s.LastScan()
	if !ok {
		return "", errs.ErrNoScan
	}
	f, err := s.builder.ReferenceDoc(s.remote.Host, last.Plan.Ports)
	if err != nil {
		return "", err
	}
	return f.Content, nil
}

// Bundle renders the non-secret deployment files for the last plan.
func (s *Service) Bundle() (*bundle.Bundle, error) {
	last, ok := s.LastScan()
	if !ok {
		return nil, errs.ErrNoScan
	}
	return s.builder.Build(s.remote.Host, last.Plan.Ports)
}

func (s *Service) onDeployEvent(e deploy.Event) {
	if e.Type == deploy.EventStep {
		s.store.Update(func(st *status.Status) {
			st.Step = string(e.Step)
			st.Message = fmt.Sprintf("[%d/%d] %s", e.Index, e.Total, e.Step)
			st.Progress = e.Percent()
		})
	}
	if s.reporter != nil {
		s.reporter(e)
	}
}

// fail moves the store to the error state and returns err.
func (s *Service) fail(opID string, err error) error {
	logger.Error("Operation failed", "host", s.remote.Host, "operation_id", opID, "error", err)
	s.store.Update(func(st *status.Status) {
		st.State = status.StateError
		st.Message = err.Error()
		st.OperationID = opID
	})
	return err
}

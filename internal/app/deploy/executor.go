// Package deploy pushes the managed service stack to a remote host.
package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/bundle"
	"github.com/homeport/stackpilot/internal/infrastructure/remote"
	"github.com/homeport/stackpilot/internal/pkg/logger"
)

// DefaultSettleDelay is the flat wait between starting the stack and probing it.
const DefaultSettleDelay = 15 * time.Second

// HealthProber probes the managed services on a host.
type HealthProber interface {
	Probe(ctx context.Context, session remote.Session, ports stack.Ports) (stack.StatusMap, error)
}

// Executor runs the deployment steps in order.
type Executor struct {
	builder     *bundle.Builder
	prober      HealthProber
	settleDelay time.Duration
	reporter    Reporter
}

// Option configures an Executor.
type Option func(*Executor)

// WithSettleDelay overrides the wait before health checks.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.settleDelay = d
		}
	}
}

// WithReporter sets the receiver of step events.
func WithReporter(r Reporter) Option {
	return func(e *Executor) {
		e.reporter = r
	}
}

// NewExecutor creates an executor that uses prober for the final step.
func NewExecutor(prober HealthProber, opts ...Option) *Executor {
	e := &Executor{
		builder:     bundle.NewBuilder(),
		prober:      prober,
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the state of one deployment.
type run struct {
	ctx     context.Context
	session remote.Session
	ports   stack.Ports
	outcome *stack.Outcome
	report  Reporter
}

func (r *run) logf(format string, args ...any) {
	r.outcome.Logf(format, args...)
	r.report(Event{
		Type:      EventLog,
		Total:     len(Steps),
		Message:   r.outcome.Log[len(r.outcome.Log)-1],
		Timestamp: time.Now().UTC(),
	})
}

// Deploy pushes the stack described by plan and reports the outcome. A plan
// that is missing or not ready is rejected before the session is used.
//
// A failing step aborts the remaining steps, closes the session and reports
// every service down, even ones that may have started. Nothing is rolled
// back. Step failures are reported in the outcome, not as an error.
func (e *Executor) Deploy(ctx context.Context, session remote.Session, plan *stack.Plan) (*stack.Outcome, error) {
	if plan == nil {
		return nil, errs.ErrNoScan
	}
	if !plan.ReadyToDeploy {
		return nil, errs.ErrNotReady
	}
	if err := plan.Ports.Validate(); err != nil {
		return nil, errs.NewPreconditionError("plan has invalid ports: %v", err)
	}

	log := logger.With("op", "deploy", "host", session.Host())
	report := e.reporter
	if report == nil {
		report = func(Event) {}
	}

	r := &run{
		ctx:     ctx,
		session: session,
		ports:   plan.Ports,
		outcome: &stack.Outcome{Log: []string{}},
		report:  report,
	}

	steps := []func(*run) error{
		e.prepareDirectories,
		e.uploadCompose,
		e.uploadEnvExample,
		e.ensureSecrets,
		e.uploadFetcher,
		e.uploadReference,
		e.startStack,
		e.settle,
		e.containerStatus,
		e.healthCheck,
	}

	for i, step := range steps {
		name := Steps[i]
		log.Info("Deployment step", "step", name, "index", i+1, "total", len(steps))
		report(Event{
			Type:      EventStep,
			Step:      name,
			Index:     i + 1,
			Total:     len(steps),
			Message:   string(name),
			Timestamp: time.Now().UTC(),
		})
		r.outcome.Logf("[%d/%d] %s", i+1, len(steps), name)

		if err := step(r); err != nil {
			_ = session.Close()
			log.Error("Deployment failed", "step", name, "error", err)

			r.outcome.Logf("Error: %v", err)
			r.outcome.Success = false
			r.outcome.Message = fmt.Sprintf("Deployment failed at %q: %v", name, err)
			r.outcome.Services = stack.AllDown()

			report(Event{
				Type:      EventError,
				Step:      name,
				Index:     i + 1,
				Total:     len(steps),
				Message:   r.outcome.Message,
				Timestamp: time.Now().UTC(),
			})
			return r.outcome, nil
		}
	}

	healthy := r.outcome.Services.HealthyCount()
	r.outcome.Success = true
	r.outcome.Message = fmt.Sprintf("Deployment complete: %d/%d services healthy", healthy, len(stack.Services()))
	log.Info("Deployment complete", "healthy", healthy)

	report(Event{
		Type:      EventComplete,
		Index:     len(steps),
		Total:     len(steps),
		Message:   r.outcome.Message,
		Timestamp: time.Now().UTC(),
	})
	return r.outcome, nil
}

func (e *Executor) prepareDirectories(r *run) error {
	for _, dir := range e.builder.Directories() {
		if err := r.session.MkdirAll(r.ctx, dir); err != nil {
			return err
		}
	}
	r.logf("Ensured %s", strings.Join(e.builder.Directories(), ", "))
	return nil
}

func (e *Executor) upload(r *run, f bundle.File) error {
	target := e.builder.RemotePath(f.Path)
	if err := r.session.Upload(r.ctx, target, f.Content, f.Mode); err != nil {
		return err
	}
	r.logf("Uploaded %s", target)
	return nil
}

func (e *Executor) uploadCompose(r *run) error {
	f, err := e.builder.Compose(r.ports)
	if err != nil {
		return err
	}
	return e.upload(r, f)
}

func (e *Executor) uploadEnvExample(r *run) error {
	f, err := e.builder.EnvExample()
	if err != nil {
		return err
	}
	return e.upload(r, f)
}

// ensureSecrets writes the secrets file only when none exists yet.
func (e *Executor) ensureSecrets(r *run) error {
	target := e.builder.RemotePath(bundle.SecretsPath)
	out, err := r.session.Execute(r.ctx, fmt.Sprintf("test -f %s && echo 'exists' || echo 'missing'", target))
	if err != nil {
		return err
	}
	if strings.Contains(out, "exists") {
		r.logf("Secrets file %s already exists; keeping it", target)
		return nil
	}

	f, err := e.builder.Secrets()
	if err != nil {
		return err
	}
	return e.upload(r, f)
}

func (e *Executor) uploadFetcher(r *run) error {
	files, err := e.builder.Fetcher()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := e.upload(r, f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) uploadReference(r *run) error {
	f, err := e.builder.ReferenceDoc(r.session.Host(), r.ports)
	if err != nil {
		return err
	}
	return e.upload(r, f)
}

// startStack logs the compose output verbatim whatever its exit status.
func (e *Executor) startStack(r *run) error {
	out, err := r.session.Execute(r.ctx, fmt.Sprintf("cd %s && docker compose up -d --build 2>&1", e.builder.Root()))
	if err != nil {
		return err
	}
	r.logf("%s", strings.TrimRight(out, "\n"))
	return nil
}

func (e *Executor) settle(r *run) error {
	if e.settleDelay <= 0 {
		return nil
	}
	r.logf("Waiting %s for services to initialize", e.settleDelay)
	time.Sleep(e.settleDelay)
	return nil
}

func (e *Executor) containerStatus(r *run) error {
	out, err := r.session.Execute(r.ctx, fmt.Sprintf("cd %s && docker compose ps 2>&1", e.builder.Root()))
	if err != nil {
		return err
	}
	r.logf("%s", strings.TrimRight(out, "\n"))
	return nil
}

func (e *Executor) healthCheck(r *run) error {
	statuses, err := e.prober.Probe(r.ctx, r.session, r.ports)
	if err != nil {
		return err
	}
	r.outcome.Services = statuses
	for _, svc := range stack.Services() {
		st := r.outcome.Services[svc]
		state := "unhealthy"
		if st.Healthy {
			state = "healthy"
		}
		r.logf("%s: %s (%s)", svc.DisplayName(), state, st.URL)
	}
	return nil
}

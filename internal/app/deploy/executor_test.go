package deploy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/homeport/stackpilot/internal/app/health"
	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/remote/remotetest"
)

const composeUpOutput = ` Container stackpilot-postgres  Started
 Container stackpilot-n8n  Started
 Container stackpilot-ntfy  Started
 Container stackpilot-fetcher  Started`

func readyPlan() *stack.Plan {
	return &stack.Plan{
		Ports:         stack.DefaultPorts(),
		ProxyKind:     "none",
		Warnings:      []string{},
		ReadyToDeploy: true,
	}
}

func healthyHost() *remotetest.Host {
	return remotetest.NewHost("203.0.113.10").
		On("docker compose up", composeUpOutput).
		On("docker compose ps", "NAME STATUS\nstackpilot-n8n Up\n").
		On("pg_isready", "/var/run/postgresql:5432 - accepting connections\n").
		On("localhost:5678/healthz", `{"status":"ok"}`).
		On("localhost:8080/v1/health", `{"healthy":true}`).
		On("localhost:3001/health", `{"status":"ok","service":"fetcher"}`)
}

func newTestExecutor(events *[]Event) *Executor {
	opts := []Option{WithSettleDelay(0)}
	if events != nil {
		opts = append(opts, WithReporter(func(e Event) { *events = append(*events, e) }))
	}
	return NewExecutor(health.NewProber(), opts...)
}

func TestExecutor_Deploy(t *testing.T) {
	h := healthyHost()
	var events []Event

	outcome, err := newTestExecutor(&events).Deploy(context.Background(), h, readyPlan())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !outcome.Success {
		t.Fatalf("expected success, got %s\n%s", outcome.Message, strings.Join(outcome.Log, "\n"))
	}
	if outcome.Message != "Deployment complete: 4/4 services healthy" {
		t.Errorf("unexpected message %q", outcome.Message)
	}

	for _, dir := range []string{"/opt/stackpilot", "/opt/stackpilot/fetcher"} {
		if !h.HasDir(dir) {
			t.Errorf("expected directory %s", dir)
		}
	}
	for _, path := range []string{
		"/opt/stackpilot/docker-compose.yml",
		"/opt/stackpilot/.env.example",
		"/opt/stackpilot/.env",
		"/opt/stackpilot/fetcher/Dockerfile",
		"/opt/stackpilot/fetcher/package.json",
		"/opt/stackpilot/fetcher/server.js",
		"/opt/stackpilot/DEPLOYMENT.md",
	} {
		if _, ok := h.File(path); !ok {
			t.Errorf("expected %s to be uploaded", path)
		}
	}
	if mode := h.Mode("/opt/stackpilot/.env"); mode != 0600 {
		t.Errorf("expected secrets mode 0600, got %o", mode)
	}
	doc, _ := h.File("/opt/stackpilot/DEPLOYMENT.md")
	if !strings.Contains(doc, "http://203.0.113.10:5678") {
		t.Error("expected reference document to embed the chosen ports")
	}

	log := strings.Join(outcome.Log, "\n")
	if !strings.Contains(log, composeUpOutput) {
		t.Error("expected compose output in the log verbatim")
	}
	if !strings.Contains(log, "stackpilot-n8n Up") {
		t.Error("expected container status in the log")
	}

	for _, svc := range stack.Services() {
		if !outcome.Services[svc].Healthy {
			t.Errorf("expected %s healthy", svc)
		}
	}
	if h.Closed() != 0 {
		t.Error("expected the executor to leave a healthy session open")
	}

	var steps []Step
	for _, e := range events {
		if e.Type == EventStep {
			steps = append(steps, e.Step)
		}
	}
	if len(steps) != len(Steps) {
		t.Fatalf("expected %d step events, got %d", len(Steps), len(steps))
	}
	for i := range Steps {
		if steps[i] != Steps[i] {
			t.Errorf("step %d: expected %s, got %s", i, Steps[i], steps[i])
		}
	}
	if last := events[len(events)-1]; last.Type != EventComplete || last.Percent() != 1 {
		t.Errorf("expected a final complete event, got %+v", last)
	}
}

func TestExecutor_StepsRunInOrder(t *testing.T) {
	h := healthyHost()
	if _, err := newTestExecutor(nil).Deploy(context.Background(), h, readyPlan()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	cmds := h.Commands()
	index := func(match string) int {
		for i, c := range cmds {
			if strings.Contains(c, match) {
				return i
			}
		}
		return -1
	}

	secrets, up, ps, probe := index("test -f"), index("docker compose up"), index("docker compose ps"), index("pg_isready")
	if !(secrets >= 0 && secrets < up && up < ps && ps < probe) {
		t.Errorf("unexpected command order: %v", cmds)
	}
}

func TestExecutor_KeepsExistingSecrets(t *testing.T) {
	h := healthyHost()
	h.PutFile("/opt/stackpilot/.env", "POSTGRES_PASSWORD=original\n")
	exec := newTestExecutor(nil)

	for i := 0; i < 2; i++ {
		outcome, err := exec.Deploy(context.Background(), h, readyPlan())
		if err != nil || !outcome.Success {
			t.Fatalf("run %d: expected success, got %v %+v", i, err, outcome)
		}
		content, _ := h.File("/opt/stackpilot/.env")
		if content != "POSTGRES_PASSWORD=original\n" {
			t.Fatalf("run %d: secrets file was overwritten: %q", i, content)
		}
	}
}

func TestExecutor_GeneratesSecretsOnce(t *testing.T) {
	h := healthyHost()
	exec := newTestExecutor(nil)

	if _, err := exec.Deploy(context.Background(), h, readyPlan()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	first, _ := h.File("/opt/stackpilot/.env")

	if _, err := exec.Deploy(context.Background(), h, readyPlan()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, _ := h.File("/opt/stackpilot/.env")

	if first == "" || first != second {
		t.Error("expected the generated secrets file to survive a second deployment unchanged")
	}
}

func TestExecutor_RejectsNotReadyPlan(t *testing.T) {
	h := healthyHost()
	plan := readyPlan()
	plan.ReadyToDeploy = false

	outcome, err := newTestExecutor(nil).Deploy(context.Background(), h, plan)
	if !errors.Is(err, errs.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	var pre *errs.PreconditionError
	if !errors.As(err, &pre) {
		t.Errorf("expected PreconditionError, got %T", err)
	}
	if outcome != nil {
		t.Error("expected no outcome")
	}
	if h.Uploads() != 0 || len(h.Commands()) != 0 || h.HasDir("/opt/stackpilot") {
		t.Error("expected no remote activity for a rejected plan")
	}
}

func TestExecutor_RejectsMissingPlan(t *testing.T) {
	if _, err := newTestExecutor(nil).Deploy(context.Background(), healthyHost(), nil); !errors.Is(err, errs.ErrNoScan) {
		t.Errorf("expected ErrNoScan, got %v", err)
	}
}

func TestExecutor_UploadFailure(t *testing.T) {
	h := healthyHost().FailUpload("/opt/stackpilot/fetcher/server.js", errors.New("disk full"))
	var events []Event

	outcome, err := newTestExecutor(&events).Deploy(context.Background(), h, readyPlan())
	if err != nil {
		t.Fatalf("expected failure in the outcome, got error %v", err)
	}

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(outcome.Message, string(StepFetcher)) || !strings.Contains(outcome.Message, "disk full") {
		t.Errorf("unexpected message %q", outcome.Message)
	}
	if h.Closed() != 1 {
		t.Errorf("expected the session to be closed once, got %d", h.Closed())
	}
	if h.Ran("docker compose up") {
		t.Error("expected remaining steps to be skipped")
	}
	if _, ok := h.File("/opt/stackpilot/DEPLOYMENT.md"); ok {
		t.Error("expected the reference document not to be uploaded")
	}
	if !strings.HasPrefix(outcome.Log[len(outcome.Log)-1], "Error: ") {
		t.Errorf("expected the error as the last log entry, got %q", outcome.Log[len(outcome.Log)-1])
	}
	if len(outcome.Services) != 4 {
		t.Fatalf("expected four service records, got %d", len(outcome.Services))
	}
	for svc, st := range outcome.Services {
		if st.Running || st.Healthy {
			t.Errorf("expected %s reported down", svc)
		}
	}
	if last := events[len(events)-1]; last.Type != EventError || last.Step != StepFetcher {
		t.Errorf("expected a final error event for the fetcher step, got %+v", last)
	}
}

func TestExecutor_ExecutionFailureAfterStart(t *testing.T) {
	h := remotetest.NewHost("203.0.113.10").
		FailOn("docker compose ps", errors.New("connection reset")).
		On("docker compose up", composeUpOutput)

	outcome, err := newTestExecutor(nil).Deploy(context.Background(), h, readyPlan())
	if err != nil {
		t.Fatalf("expected failure in the outcome, got error %v", err)
	}

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if !h.Ran("docker compose up") {
		t.Error("expected the stack to have been started before the failure")
	}
	// Services started before the failure are still reported down.
	if outcome.Services.HealthyCount() != 0 {
		t.Errorf("expected all services down, got %+v", outcome.Services)
	}
	if h.Ran("pg_isready") {
		t.Error("expected health probes to be skipped")
	}
}

func TestExecutor_HealthCheckChannelFailure(t *testing.T) {
	h := remotetest.NewHost("203.0.113.10").
		FailOn("pg_isready", errors.New("connection reset")).
		On("docker compose up", composeUpOutput).
		On("docker compose ps", "NAME STATUS\nstackpilot-n8n Up\n")
	var events []Event

	outcome, err := newTestExecutor(&events).Deploy(context.Background(), h, readyPlan())
	if err != nil {
		t.Fatalf("expected failure in the outcome, got error %v", err)
	}

	if outcome.Success {
		t.Fatalf("expected failure, got %s", outcome.Message)
	}
	if !strings.Contains(outcome.Message, string(StepHealth)) {
		t.Errorf("expected the health step named in %q", outcome.Message)
	}
	if h.Closed() == 0 {
		t.Error("expected the session to be closed")
	}
	if outcome.Services.HealthyCount() != 0 {
		t.Errorf("expected all services down, got %+v", outcome.Services)
	}
	if last := events[len(events)-1]; last.Type != EventError || last.Step != StepHealth {
		t.Errorf("expected a final error event for the health step, got %+v", last)
	}
}

func TestExecutor_SettleIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := NewExecutor(health.NewProber(), WithSettleDelay(time.Millisecond))
	r := &run{
		ctx:     ctx,
		outcome: &stack.Outcome{},
		report:  func(Event) {},
	}
	if err := exec.settle(r); err != nil {
		t.Errorf("expected the settle wait to complete, got %v", err)
	}
}

func TestExecutor_SettleDelayOption(t *testing.T) {
	if d := NewExecutor(health.NewProber()).settleDelay; d != DefaultSettleDelay {
		t.Errorf("expected default %s, got %s", DefaultSettleDelay, d)
	}
	if d := NewExecutor(health.NewProber(), WithSettleDelay(-1)).settleDelay; d != DefaultSettleDelay {
		t.Errorf("expected negative delay to be ignored, got %s", d)
	}
	if d := NewExecutor(health.NewProber(), WithSettleDelay(time.Second)).settleDelay; d != time.Second {
		t.Errorf("expected 1s, got %s", d)
	}
}

func TestEvent_Percent(t *testing.T) {
	if p := (Event{Type: EventStep, Index: 1, Total: 10}).Percent(); p != 0 {
		t.Errorf("expected 0, got %f", p)
	}
	if p := (Event{Type: EventStep, Index: 6, Total: 10}).Percent(); p != 0.5 {
		t.Errorf("expected 0.5, got %f", p)
	}
	if p := (Event{Type: EventLog}).Percent(); p != 0 {
		t.Errorf("expected 0 without a total, got %f", p)
	}
}

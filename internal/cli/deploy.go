package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/homeport/stackpilot/internal/app/control"
	"github.com/homeport/stackpilot/internal/app/deploy"
	"github.com/homeport/stackpilot/internal/cli/ui"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/spf13/cobra"
)

var (
	deployYes bool

	errDeployAborted = errors.New("deployment aborted")
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Scan the host and deploy the stack onto it",
	Long: `Deploy scans the host, shows the plan, and after confirmation uploads
the compose bundle to /opt/stackpilot, starts the services and checks that
each one is reachable.

Existing secrets in /opt/stackpilot/.env are kept.

Examples:
  stackpilot deploy --host 203.0.113.10 --user root --key ~/.ssh/id_ed25519
  stackpilot deploy --yes`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "skip the confirmation prompt")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	interactive := ui.IsTerminal() && !IsQuiet()

	var program *tea.Program
	reporter := func(e deploy.Event) {
		if e.Type != deploy.EventStep {
			return
		}
		switch {
		case program != nil:
			program.Send(ui.ProgressMsg{Percent: e.Percent(), Message: string(e.Step)})
		case !IsQuiet():
			fmt.Println(ui.SimpleProgress(e.Index, e.Total, string(e.Step)))
		}
	}

	svc, err := newService(reporter)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := runScan(ctx, svc, false)
	if err != nil {
		return err
	}
	if !IsQuiet() {
		printPlanSummary(result.Plan)
	}
	if !result.Plan.ReadyToDeploy {
		return fmt.Errorf("host %s is not ready: install a container runtime first", svc.Host())
	}

	if !deployYes {
		if !ui.IsTerminal() {
			return fmt.Errorf("refusing to deploy without confirmation; pass --yes")
		}
		if !ui.PromptYesNo(fmt.Sprintf("Deploy the stack to %s?", svc.Host()), false) {
			return errDeployAborted
		}
	}

	var outcome *stack.Outcome
	if interactive {
		program = tea.NewProgram(ui.NewProgressModel("Deploying to " + svc.Host()))
		outcome, err = deployWithProgress(ctx, svc, program)
	} else {
		outcome, err = svc.Deploy(ctx)
	}
	if err != nil {
		return err
	}

	printOutcome(outcome)
	if !outcome.Success {
		return fmt.Errorf("deployment failed: %s", outcome.Message)
	}
	return nil
}

// deployWithProgress runs the deployment while the progress program owns
// the terminal.
func deployWithProgress(ctx context.Context, svc *control.Service, p *tea.Program) (*stack.Outcome, error) {
	type result struct {
		outcome *stack.Outcome
		err     error
	}
	done := make(chan result, 1)

	go func() {
		outcome, err := svc.Deploy(ctx)
		msg := "Done"
		if err != nil || !outcome.Success {
			msg = "Failed"
		}
		p.Send(ui.ProgressMsg{Percent: 1, Message: msg})
		done <- result{outcome, err}
	}()

	if _, err := p.Run(); err != nil {
		return nil, fmt.Errorf("progress display: %w", err)
	}
	r := <-done
	return r.outcome, r.err
}

func printPlanSummary(plan *stack.Plan) {
	t := ui.NewTable("Service", "Port")
	for _, svc := range stack.Services() {
		t.AddRow(svc.DisplayName(), strconv.Itoa(plan.Ports[svc]))
	}
	t.Print()
	fmt.Println()
}

func printOutcome(outcome *stack.Outcome) {
	if IsVerbose() {
		for _, line := range outcome.Log {
			ui.Muted(line)
		}
		fmt.Println()
	}

	if !IsQuiet() {
		printStatusTable(outcome.Services)
		fmt.Println()
	}

	if outcome.Success {
		ui.Success(outcome.Message)
	} else {
		ui.Error(outcome.Message)
	}
}

func printStatusTable(services stack.StatusMap) {
	t := ui.NewTable("Service", "Running", "Healthy", "URL")
	for _, svc := range stack.Services() {
		st := services[svc]
		t.AddRow(svc.DisplayName(), ui.YesNo(st.Running), ui.YesNo(st.Healthy), st.URL)
	}
	t.Print()
}

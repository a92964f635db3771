package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/homeport/stackpilot/internal/app/control"
	"github.com/homeport/stackpilot/internal/app/deploy"
	"github.com/homeport/stackpilot/internal/cli/ui"
	"github.com/homeport/stackpilot/internal/domain/host"
)

// newService builds the control service from the current configuration.
func newService(reporter deploy.Reporter) (*control.Service, error) {
	rc, err := remoteConfig()
	if err != nil {
		return nil, err
	}
	return control.NewService(control.Options{
		Remote:      rc,
		SettleDelay: settleDelay(),
		Reporter:    reporter,
	}), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runScan scans the host and, unless silent, prints the plan's warnings.
func runScan(ctx context.Context, svc *control.Service, silent bool) (*control.ScanResult, error) {
	silent = silent || IsQuiet()
	if !silent {
		ui.Info("Scanning " + svc.Host())
	}
	result, err := svc.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if !silent {
		for _, w := range result.Plan.Warnings {
			ui.Warning(w)
		}
	}
	return result, nil
}

func proxyLabel(kind host.ProxyKind) string {
	if kind == "" || kind == host.ProxyNone {
		return "none"
	}
	return string(kind)
}

package cli

import (
	"fmt"

	"github.com/homeport/stackpilot/internal/cli/ui"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the deployed services",
	Long: `Health probes every managed service on its default port and reports
which ones answer. Services that were moved to fallback ports by a
deployment are reported as down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(nil)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		services, err := svc.CheckHealth(ctx)
		if err != nil {
			return err
		}

		printStatusTable(services)
		fmt.Println()

		healthy, total := services.HealthyCount(), len(stack.Services())
		summary := fmt.Sprintf("%d/%d services healthy", healthy, total)
		if healthy == total {
			ui.Success(summary)
			return nil
		}
		ui.Warning(summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

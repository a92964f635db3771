package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/homeport/stackpilot/internal/app/control"
	"github.com/homeport/stackpilot/internal/cli/ui"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var scanOutput string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Inspect the remote host and compute a deployment plan",
	Long: `Scan connects to the configured host, collects operating system facts,
listening ports, container runtime state and reverse proxy presence, and
prints the resulting placement plan. Nothing on the host is modified.

Examples:
  stackpilot scan --host 203.0.113.10 --user root --ask-password
  stackpilot scan -o yaml > facts.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(nil)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		// Structured output stays machine-readable.
		result, err := runScan(ctx, svc, scanOutput != "table")
		if err != nil {
			return err
		}
		return printScan(result, scanOutput)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "table", "output format: table, json or yaml")
}

func printScan(result *control.ScanResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(result)
	case "table":
		printScanTable(result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printScanTable(result *control.ScanResult) {
	facts, plan := result.Facts, result.Plan

	ui.Header("Host")
	hostTable := ui.NewTable("Property", "Value")
	hostTable.AddRow("Hostname", facts.OS.Hostname)
	hostTable.AddRow("Distribution", facts.OS.Distribution)
	hostTable.AddRow("Kernel", facts.OS.Kernel)
	hostTable.AddRow("Disk", facts.Resources.Disk)
	hostTable.AddRow("Memory", facts.Resources.Memory)
	hostTable.AddRow("Container runtime", runtimeLabel(facts.Runtime.Installed, facts.Runtime.Version))
	hostTable.AddRow("Compose", facts.Runtime.ComposeVersion)
	hostTable.AddRow("Reverse proxy", proxyLabel(facts.Proxy.Kind))
	hostTable.Print()
	fmt.Println()

	ui.Header("Listening ports")
	ports := append(facts.Ports[:0:0], facts.Ports...)
	sort.SliceStable(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })
	portTable := ui.NewTable("Port", "Protocol", "State", "Process")
	for _, p := range ports {
		portTable.AddRow(strconv.Itoa(p.Port), p.Protocol, p.State, p.Process)
	}
	portTable.Print()
	fmt.Println()

	ui.Header("Plan")
	planTable := ui.NewTable("Service", "Port", "Existing")
	for _, svc := range stack.Services() {
		planTable.AddRow(svc.DisplayName(), strconv.Itoa(plan.Ports[svc]), ui.YesNo(facts.HasExisting(svc)))
	}
	planTable.Print()
	fmt.Println()

	if plan.ReadyToDeploy {
		ui.Success("Ready to deploy")
	} else {
		ui.Error("Not ready: container runtime not installed")
	}
}

func runtimeLabel(installed bool, version string) string {
	if !installed {
		return "not installed"
	}
	return version
}

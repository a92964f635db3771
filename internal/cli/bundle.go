package cli

import (
	"fmt"

	"github.com/homeport/stackpilot/internal/cli/ui"
	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/bundle"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	bundleOutput      string
	bundleOffline     bool
	bundleWithSecrets bool
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Work with the deployment bundle",
}

var bundleExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the deployment bundle to a tar.gz archive",
	Long: `Export renders the files a deployment would upload and writes them to
a tar.gz archive for review or manual installation.

By default the host is scanned first so the archive carries the planned
ports. With --offline no connection is made and the default ports are used.
Secrets are only included with --with-secrets.

Examples:
  stackpilot bundle export -o stackpilot.tar.gz
  stackpilot bundle export --offline --host example.com`,
	RunE: runBundleExport,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.AddCommand(bundleExportCmd)

	bundleExportCmd.Flags().StringVarP(&bundleOutput, "output", "o", "stackpilot.tar.gz", "archive path")
	bundleExportCmd.Flags().BoolVar(&bundleOffline, "offline", false, "use default ports without scanning")
	bundleExportCmd.Flags().BoolVar(&bundleWithSecrets, "with-secrets", false, "include a freshly generated .env")
}

func runBundleExport(cmd *cobra.Command, args []string) error {
	var (
		b   *bundle.Bundle
		err error
	)

	if bundleOffline {
		hostname := viper.GetString("ssh.host")
		if hostname == "" {
			hostname = "localhost"
		}
		b, err = bundle.NewBuilder().Build(hostname, stack.DefaultPorts())
	} else {
		svc, serr := newService(nil)
		if serr != nil {
			return serr
		}
		ctx, cancel := signalContext()
		defer cancel()

		if _, err := runScan(ctx, svc, false); err != nil {
			return err
		}
		b, err = svc.Bundle()
	}
	if err != nil {
		return fmt.Errorf("rendering bundle: %w", err)
	}

	if bundleWithSecrets {
		secrets, err := bundle.NewBuilder().Secrets()
		if err != nil {
			return err
		}
		b.Files = append(b.Files, secrets)
		if !IsQuiet() {
			ui.Warning("The archive contains generated secrets; store it accordingly")
		}
	}

	if err := bundle.NewArchiver().CreateArchive(b, bundleOutput); err != nil {
		return err
	}

	if !IsQuiet() {
		t := ui.NewTable("File", "Mode")
		for _, f := range b.Files {
			t.AddRow(f.Path, f.Mode.String())
		}
		t.Print()
		fmt.Println()
		ui.Success(fmt.Sprintf("Wrote %d files to %s", len(b.Files), bundleOutput))
	}
	return nil
}

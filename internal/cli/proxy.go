package cli

import (
	"fmt"
	"strings"

	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/spf13/cobra"
)

var proxyKind string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Print a reverse-proxy snippet for the stack",
	Long: `Proxy scans the host and prints a configuration snippet routing the
stack's public paths through the detected reverse proxy. Use --kind to
render a snippet for a proxy other than the detected one.

Examples:
  stackpilot proxy > /etc/nginx/conf.d/stackpilot.conf
  stackpilot proxy --kind caddy`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(nil)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		// The snippet goes to stdout, so keep the scan silent.
		if _, err := runScan(ctx, svc, true); err != nil {
			return err
		}

		snippet, err := svc.ProxyConfig(host.ProxyKind(strings.ToLower(proxyKind)))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), snippet)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().StringVar(&proxyKind, "kind", "", "proxy to render for: nginx or caddy (default: detected)")
}

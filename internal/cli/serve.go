package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/homeport/stackpilot/internal/api"
	"github.com/homeport/stackpilot/internal/cli/ui"
	"github.com/homeport/stackpilot/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API",
	Long: `Start the HTTP API that drives scans, deployments and health checks
against the configured host, and streams status updates over a websocket.

Examples:
  stackpilot serve                       # Start on localhost:8080
  stackpilot serve --port 3000           # Custom port
  stackpilot serve --listen 0.0.0.0      # Listen on all interfaces
  STACKPILOT_SERVER_API_TOKEN=s3cret stackpilot serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to serve on")
	serveCmd.Flags().StringP("listen", "l", "localhost", "address to bind to")
	serveCmd.Flags().Float64("rate-limit", 10, "requests per second per client (0 disables)")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("server.rate_limit", serveCmd.Flags().Lookup("rate-limit"))
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, err := newService(nil)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Config{
		Host:           viper.GetString("server.host"),
		Port:           viper.GetInt("server.port"),
		Verbose:        IsVerbose(),
		Version:        version.Version,
		APIToken:       viper.GetString("server.api_token"),
		RateLimit:      viper.GetFloat64("server.rate_limit"),
		RequestTimeout: viper.GetDuration("server.request_timeout"),
	}, svc)

	if !IsQuiet() {
		ui.Header("stackpilot dashboard")
		ui.Info(fmt.Sprintf("Serving on http://%s", server.Addr()))
		if svc.Host() == "" {
			ui.Warning("No host configured; scans will fail until ssh.host is set")
		}
		if viper.GetString("server.api_token") == "" {
			ui.Warning("No API token configured; /api routes are unauthenticated")
		}
		ui.Divider()
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if !IsQuiet() {
		ui.Success("Server stopped")
	}
	return <-errCh
}

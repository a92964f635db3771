package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/homeport/stackpilot/internal/cli/ui"
	"github.com/homeport/stackpilot/internal/infrastructure/remote"
	"github.com/homeport/stackpilot/internal/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	verbose     bool
	quiet       bool
	askPassword bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stackpilot",
	Short: "Scan a remote host and deploy the automation stack onto it",
	Long: `stackpilot inspects a single remote host over SSH, plans where the
automation stack (PostgreSQL, n8n, ntfy and the fetcher service) can run
without colliding with what is already there, and deploys it with
Docker Compose.

Scanning is read-only. Deploying uploads files to /opt/stackpilot and
starts the stack; generated secrets are never overwritten.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		logger.Init(logger.Config{
			Level:   logger.ParseLevel(viper.GetString("log.level")),
			JSON:    viper.GetBool("log.json"),
			Verbose: IsVerbose(),
		})
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stackpilot.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")
	flags.Bool("log-json", false, "log as JSON")

	// Connection flags
	flags.String("host", "", "remote host to manage")
	flags.Int("ssh-port", remote.DefaultPort, "SSH port")
	flags.String("user", "", "SSH username")
	flags.String("key", "", "path to the SSH private key")
	flags.String("known-hosts", "", "known_hosts file used to verify the host key")
	flags.Duration("ssh-timeout", remote.DefaultTimeout, "SSH connect timeout")
	flags.BoolVar(&askPassword, "ask-password", false, "prompt for the SSH password")

	// Bind flags to viper
	bind := map[string]string{
		"verbose":         "verbose",
		"quiet":           "quiet",
		"log.json":        "log-json",
		"ssh.host":        "host",
		"ssh.port":        "ssh-port",
		"ssh.user":        "user",
		"ssh.key_path":    "key",
		"ssh.known_hosts": "known-hosts",
		"ssh.timeout":     "ssh-timeout",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	viper.SetDefault("log.level", "info")
	viper.SetDefault("deploy.settle_delay", "15s")
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.rate_limit", 10)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// Search config in home directory with name ".stackpilot" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stackpilot")
	}

	// STACKPILOT_SSH_HOST, STACKPILOT_SERVER_API_TOKEN, ...
	viper.SetEnvPrefix("STACKPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	} else if verbose {
		ui.Info(fmt.Sprintf("Using config file: %s", viper.ConfigFileUsed()))
	}

	return nil
}

// remoteConfig assembles the connection settings, prompting for the
// password when --ask-password is set.
func remoteConfig() (remote.Config, error) {
	cfg := remote.Config{
		Host:           viper.GetString("ssh.host"),
		Port:           viper.GetInt("ssh.port"),
		User:           viper.GetString("ssh.user"),
		Password:       viper.GetString("ssh.password"),
		KeyPath:        viper.GetString("ssh.key_path"),
		KnownHostsPath: viper.GetString("ssh.known_hosts"),
		Timeout:        viper.GetDuration("ssh.timeout"),
	}

	if askPassword {
		password, err := ui.PromptPassword(fmt.Sprintf("SSH password for %s@%s", cfg.User, cfg.Host))
		if err != nil {
			return cfg, err
		}
		cfg.Password = password
	}
	return cfg, nil
}

// settleDelay returns the configured wait between start and health checks.
func settleDelay() time.Duration {
	return viper.GetDuration("deploy.settle_delay")
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return viper.GetBool("verbose")
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return viper.GetBool("quiet")
}

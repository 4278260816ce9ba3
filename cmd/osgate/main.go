// Command osgate detects the host platform and gates commands, HTML
// classes and proxy connections on it.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Use-Tusk/osgate/internal/config"
	"github.com/Use-Tusk/osgate/internal/logging"
	"github.com/Use-Tusk/osgate/internal/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errNotAllowed makes the process exit 1 without printing an error.
var errNotAllowed = errors.New("platform not allowed")

// app carries state shared by subcommands once the root command has run.
type app struct {
	configPath string
	debug      bool

	cfg  *config.Config
	gate *platform.Gate
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errNotAllowed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "osgate",
		Short:         "Detect the host platform and gate actions on it",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/osgate/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		detectCmd(a),
		allowedCmd(a),
		runCmd(a),
		tagCmd(a),
		proxyCmd(a),
		versionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Log.Level = logging.LevelDebug
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.gate = platform.New(platform.WithLogger(logger))
	logger.Debug("platform detected", "os", a.gate.OS(), "goos", platform.GOOS())
	return nil
}

// allowList returns the --os flag value, or the configured list when the
// flag is empty.
func (a *app) allowList(flag string) platform.AllowList {
	if flag != "" {
		return platform.ParseAllowList(flag)
	}
	return a.cfg.Allowed()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "osgate %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

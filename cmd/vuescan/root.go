package main

import (
	"fmt"

	"github.com/praetorian-inc/vuescan/pkg/config"
	"github.com/praetorian-inc/vuescan/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	verbose    bool
	quiet      bool

	// set by setup before any subcommand runs
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vuescan",
	Short: "vuescan - rule based vulnerability scanner for Vue and mini-program code",
	Long: `vuescan matches a declarative rule set against Vue, JavaScript, TypeScript and
mini-program source files and reports findings with severity, confidence and
the dataflow signals found around each match.

Settings come from --config (YAML), then VUESCAN_* environment variables,
then flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console, json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and builds the logger. Flags win over the
// config file and environment.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}

	switch {
	case logLevel != "":
		c.Log.Level = logLevel
	case verbose:
		c.Log.Level = "debug"
	case quiet:
		c.Log.Level = "error"
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	cfg, logger = c, l
	return nil
}

// settings returns the loaded configuration, or defaults when setup has not
// run.
func settings() (*config.Config, *zap.Logger) {
	if cfg == nil {
		d := config.Default()
		return &d, zap.NewNop()
	}
	return cfg, logger
}

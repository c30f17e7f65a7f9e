// Package cli implements the ethdeploy command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mrz1836/ethdeploy/internal/config"
	"github.com/mrz1836/ethdeploy/internal/output"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter

	helpOnce sync.Once
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ethdeploy",
	Short: "Build, sign and deploy Ethereum contracts",
	Long: `ethdeploy builds legacy Ethereum transactions, signs them with EIP-155
replay protection and deploys contracts to a JSON-RPC node.

Every deployment is verified: the contract address reported by the node must
match the address derived from the sender and nonce.

Example:
  ethdeploy encode --types uint256,string --args 1234 --args abcd
  ethdeploy address --sender 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266 --nonce 0
  ethdeploy deploy --bytecode @build/Token.bin --types uint256 --args 1000000`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	helpOnce.Do(func() { walkCommands(rootCmd, enrichParentLong) })

	if err := rootCmd.Execute(); err != nil {
		formatErr(err)
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return deployerr.ExitCode(err)
}

// formatErr prints err to stderr in the active output format.
func formatErr(err error) {
	format := output.FormatText
	if formatter != nil {
		format = formatter.Format()
	}
	_ = output.FormatError(rootCmd.ErrOrStderr(), err, format)
}

// initGlobals initializes global configuration, logger, and formatter.
// Precedence is flags, then environment, then the config file, then defaults.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}
	home = config.ExpandPath(home)

	var err error
	cfg, err = config.LoadOrDefault(config.Path(home))
	if err != nil {
		return err
	}
	cfg.Home = home

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = config.ExpandPath(homeDir)
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != string(output.FormatAuto) {
		cfg.Output.DefaultFormat = outputFormat
	}

	// A broken log file must not block the command.
	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), config.ExpandPath(cfg.Logging.File))
	if err != nil {
		logger = config.NullLogger()
	}

	formatter = output.NewFormatter(output.ParseFormat(cfg.Output.DefaultFormat), cmd.OutOrStdout())

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration: %v", err)
		return err
	}
	logger.Debug("ethdeploy %s: home=%s rpc=%s chain=%s", cmd.Name(), cfg.Home, cfg.Network.RPC, cfg.ChainIDString())
	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *config.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "ethdeploy data directory (default: ~/.ethdeploy)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output and debug logging")
}

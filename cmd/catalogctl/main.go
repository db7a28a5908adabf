// Package main provides the catalogctl CLI, a one-shot client of the
// catalog filter engine.
package main

import (
	"fmt"
	"os"

	"github.com/devrev/catalogd/internal/app"
	"github.com/devrev/catalogd/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// configFile is set by the --config flag.
	configFile string
	seedFile   string
	remoteURL  string
	verbose    bool

	// rt is built by PersistentPreRunE for commands that need it.
	rt *app.Runtime
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "catalogctl queries the vehicle catalog filter engine",
	Long: `catalogctl builds a single filter session against the configured
catalog (a remote listing API or a local seed file), applies the given
filters, waits for option lists and results to settle and prints them.`,
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if rt != nil {
			rt.Close()
			rt = nil
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed", "", "YAML seed catalog, overrides catalog.seed_file")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "remote catalog base URL, overrides remote.base_url")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at debug level")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(dimensionsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "catalogctl v0.1.0")
	},
}

// initRuntime loads config and wires the engine for commands that query it.
func initRuntime(cmd *cobra.Command, args []string) error {
	if cmd.Name() != queryCmd.Name() {
		return nil
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if seedFile != "" {
		cfg.Catalog.SeedFile = seedFile
	}
	if remoteURL != "" {
		cfg.Remote.BaseURL = remoteURL
	}
	// catalogctl primes and settles explicitly
	cfg.Sessions.PrimeTimeout = 0

	logger := zap.NewNop()
	if verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
		if logger, err = app.NewLogger(cfg.Logging); err != nil {
			return err
		}
	}

	rt, err = app.New(cfg, prometheus.NewRegistry(), logger)
	return err
}

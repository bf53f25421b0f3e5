// Package main is the shelfrank CLI: data directory setup, one-shot cycles,
// the serve daemon, and read-only views over the published documents.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"shelfrank/internal/config"
	"shelfrank/internal/logging"
	"shelfrank/internal/output"
)

var (
	cfgFile string
	dataDir string
	verbose bool
	noColor bool

	cfg     config.Config
	logger  *logging.Logger
	printer *output.Printer

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "shelfrank",
	Short: "Ranked book leaderboard built from scraped retail sales ranks",
	Long: `shelfrank tracks reader-submitted books, scrapes their sales rank from
the retail product page, filters them against a blacklist, and publishes a
dense 1..N leaderboard.

Example usage:
  shelfrank setup                # initialize the data directory
  shelfrank cycle                # run one full update cycle
  shelfrank serve                # run the daemon with the HTTP API
  shelfrank top --limit 10       # show the current leaderboard
  shelfrank status               # show the last cycle's outcome`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func initConfig() error {
	// A .env file feeds the SHELFRANK_* overrides; missing is fine.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if verbose {
		level = logging.LevelDebug
	}
	logger = logging.New(os.Stderr, level, "shelfrank")
	printer = output.NewPrinter(output.ResolveColors(!noColor))
	return nil
}

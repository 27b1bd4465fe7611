package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ossminer/crawler/internal/config"
	"github.com/ossminer/crawler/internal/logging"
)

var (
	Version = "dev"

	verbose bool
	logger  *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "crawler",
	Short:   "Mine C repositories for source-level match data",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "info"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(logging.Config{Level: level})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(searchCmd)
}

// loadConfig loads and validates the TOML config at path, exiting fatally
// on failure: ConfigInvalid is a fatal kind per spec §7.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	return cfg
}

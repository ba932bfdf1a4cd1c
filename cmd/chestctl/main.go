package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LinkesAuge/chestbuddy/internal/config"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

var (
	// Global flags
	cfgFile  string
	logLevel string

	// cfg is loaded once in PersistentPreRunE and read by every command.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chestctl",
	Short: "Offline chest data toolbox",
	Long: `chestctl runs the ChestBuddy pipeline over local CSV files without a
server: import with deduplication, correction and validation, rule-only
correction, re-encoding to clean UTF-8, reference list diagnosis and an
offline leaderboard.

Reference lists and correction rules come from the configured lists_dir
and rules_file (see --config and the CHESTBUDDY_* environment variables).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load reads the file named by CHESTBUDDY_CONFIG; the flag is
		// sugar for that.
		if cfgFile != "" {
			if err := os.Setenv("CHESTBUDDY_CONFIG", cfgFile); err != nil {
				return fmt.Errorf("setting config path: %w", err)
			}
		}

		var err error
		cfg, err = config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if err := logger.Init(); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		if err := logger.SetLevelString(level); err != nil {
			return fmt.Errorf("setting log level: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (default: CHESTBUDDY_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log verbosity: debug, info, warn, error (default: config log_level)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

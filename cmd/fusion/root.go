package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/artpar/fusion/adapters/sqlite"
	"github.com/artpar/fusion/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags; empty values fall back to the environment.
	cfgFile     string
	databaseURL string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fusion",
	Short: "API fusion gateway aggregating upstream JSON endpoints",
	Long: `Fusion is an aggregating API gateway.

Each configured destination path fans out to its upstream sources in
parallel, collects their JSON replies into one ordered array, and
optionally reshapes it with a jq filter before answering.

Quick start:
  fusion validate   # Check the configuration file
  fusion serve      # Start the gateway

Management:
  fusion reconcile  # Apply the configuration file to the database
  fusion token      # Mint bearer tokens`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $CONFIG_FILE or "+config.DefaultConfigFile+")")
	rootCmd.PersistentFlags().StringVarP(&databaseURL, "database", "d", "", "database path or sqlite:// URL (default $DATABASE_URL)")
}

// configPath resolves the configuration file from the flag, the
// environment, or the packaged default, in that order.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv(config.EnvConfigFile); v != "" {
		return v
	}
	return config.DefaultConfigFile
}

// openStores connects to the database named by the flag or the
// environment and runs pending migrations.
func openStores() (*sqlite.Stores, *sqlite.DB, error) {
	dsn := databaseURL
	if dsn == "" {
		dsn = os.Getenv(config.EnvDatabaseURL)
	}
	if dsn == "" {
		return nil, nil, fmt.Errorf("database not configured: pass --database or set %s", config.EnvDatabaseURL)
	}

	db, err := sqlite.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return sqlite.NewStores(db), db, nil
}

// cliLogger writes human-readable logs for one-shot commands.
func cliLogger() zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(output).With().Timestamp().Logger()
}

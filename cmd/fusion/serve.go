package main

import (
	"os"

	"github.com/artpar/fusion/bootstrap"
	"github.com/artpar/fusion/config"
	"github.com/spf13/cobra"
)

var watchConfig bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the fusion gateway.

The server will:
  - Read runtime settings from the environment
  - Connect to the database and run migrations
  - Apply the configuration file (sources, destinations, tokens)
  - Serve aggregated GET requests under the configured path prefix

Environment variables:
  CONFIG_FILE          - configuration file (default ` + config.DefaultConfigFile + `)
  DATABASE_URL         - SQLite path or sqlite:// URL (required)
  API_BIND_ADDRESS     - IPv4 listen address (required)
  API_BIND_PORT        - listen port (required)
  API_BIND_PATH        - route prefix, e.g. /api (default none)
  LOG_LEVEL            - debug, info, warn, error (default info)
  LOG_FORMAT           - json or console (default json)
  API_METRICS_ENABLED  - expose /metrics and /healthz (default false)

SIGHUP re-applies the configuration file without a restart.

Examples:
  fusion serve
  fusion serve --watch
  CONFIG_FILE=./fusion.yaml DATABASE_URL=./fusion.db \
    API_BIND_ADDRESS=0.0.0.0 API_BIND_PORT=8080 fusion serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&watchConfig, "watch", false, "reload when the configuration file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	// The --config flag feeds the same path the environment would.
	if cfgFile != "" {
		os.Setenv(config.EnvConfigFile, cfgFile)
	}
	if databaseURL != "" {
		os.Setenv(config.EnvDatabaseURL, databaseURL)
	}

	app, err := bootstrap.NewWithOptions(bootstrap.Options{Watch: watchConfig})
	if err != nil {
		return err
	}
	return app.Run()
}

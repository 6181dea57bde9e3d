// Package bootstrap wires all dependencies and starts the gateway.
// All runtime settings come from the environment; the routed entities
// come from the YAML configuration file reconciled into the database.
package bootstrap

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/fusion/adapters/clock"
	"github.com/artpar/fusion/adapters/filter"
	"github.com/artpar/fusion/adapters/hasher"
	fusionhttp "github.com/artpar/fusion/adapters/http"
	"github.com/artpar/fusion/adapters/idgen"
	"github.com/artpar/fusion/adapters/metrics"
	"github.com/artpar/fusion/adapters/sqlite"
	"github.com/artpar/fusion/adapters/upstream"
	"github.com/artpar/fusion/app"
	"github.com/artpar/fusion/config"
)

// App represents the running gateway.
type App struct {
	Bindings config.Bindings
	Logger   zerolog.Logger
	DB       *sqlite.DB
	Stores   *sqlite.Stores
	Metrics  *metrics.Collector

	HTTPServer *http.Server

	Dispatcher *app.DispatchService
	Reconciler *app.ReconcileService

	watcher *configWatcher
}

// Options tunes application construction.
type Options struct {
	// Watch re-runs reconciliation whenever the configuration file
	// changes on disk.
	Watch bool
}

// New creates and initializes the application from the environment.
func New() (*App, error) {
	return NewWithOptions(Options{})
}

// NewWithOptions creates and initializes the application.
func NewWithOptions(opts Options) (*App, error) {
	b, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	logger := setupLogger(b)
	logger.Info().Msg("initializing fusion")

	a := &App{
		Bindings: b,
		Logger:   logger,
	}

	if err := a.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if b.MetricsEnabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	a.initServices()

	// Apply the configuration file before the first request can hit
	// the store.
	if err := a.Reconcile(context.Background()); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("apply configuration: %w", err)
	}

	if opts.Watch {
		w, err := newConfigWatcher(a, b.ConfigFile)
		if err != nil {
			a.DB.Close()
			return nil, fmt.Errorf("watch configuration: %w", err)
		}
		a.watcher = w
	}

	a.initHTTPServer()
	return a, nil
}

func (a *App) initDatabase() error {
	db, err := sqlite.InitPool(a.Bindings.DatabaseURL)
	if errors.Is(err, sqlite.ErrPoolInitialized) {
		db, err = sqlite.Pool()
	}
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Stores = sqlite.NewStores(db)
	a.Logger.Info().Str("database", a.Bindings.DatabaseURL).Msg("database initialized")
	return nil
}

func (a *App) initServices() {
	sha := hasher.NewSHA256()
	clk := clock.Real{}

	a.Reconciler = app.NewReconcileService(app.ReconcileDeps{
		Stores:  a.Stores.Ports(),
		Tx:      a.Stores,
		Hasher:  sha,
		Clock:   clk,
		Metrics: a.Metrics,
		Logger:  a.Logger,
	})

	authorizer := app.NewAuthorizer(app.AuthorizerDeps{
		Tokens:       a.Stores.Tokens,
		Destinations: a.Stores.Destinations,
		Hasher:       sha,
		Clock:        clk,
		Metrics:      a.Metrics,
		Logger:       a.Logger,
	})

	a.Dispatcher = app.NewDispatchService(app.DispatchDeps{
		Destinations: a.Stores.Destinations,
		Authorizer:   authorizer,
		Fetcher:      upstream.NewClient(upstream.Config{}),
		Filter:       filter.NewEngine(),
		IDGen:        idgen.UUID{},
		Metrics:      a.Metrics,
		Logger:       a.Logger,
	})
}

func (a *App) initHTTPServer() {
	router := fusionhttp.NewRouter(
		fusionhttp.NewGatewayHandler(a.Dispatcher),
		a.Logger,
		fusionhttp.RouterConfig{
			Prefix:     a.Bindings.BindPath,
			Metrics:    a.Metrics,
			OpsEnabled: a.Bindings.MetricsEnabled,
			Ping:       a.DB.PingContext,
		},
	)

	a.HTTPServer = &http.Server{
		Addr:              a.Bindings.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Reconcile loads the configuration file and applies it to the store.
// An unchanged canonical document is skipped.
func (a *App) Reconcile(ctx context.Context) error {
	doc, canonical, err := config.Load(a.Bindings.ConfigFile)
	if err != nil {
		return err
	}

	res, err := a.Reconciler.Run(ctx, doc, canonical)
	if err != nil {
		return err
	}

	if res.Applied {
		a.Logger.Info().
			Str("hash", hex.EncodeToString(res.Hash[:8])).
			Int("sources", res.Sources).
			Int("destinations", res.Destinations).
			Int("tokens", res.Tokens).
			Msg("configuration applied")
	}
	return nil
}

// Run starts the HTTP server and blocks until shutdown. SIGHUP
// re-runs reconciliation without restarting the server.
func (a *App) Run() error {
	if a.watcher != nil {
		a.watcher.start()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Str("prefix", a.Bindings.BindPath).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	for {
		select {
		case err := <-errCh:
			a.Shutdown()
			return fmt.Errorf("server error: %w", err)
		case <-reload:
			a.Logger.Info().Msg("SIGHUP received, reloading configuration")
			if err := a.Reconcile(context.Background()); err != nil {
				a.Logger.Error().Err(err).Msg("reload failed, keeping previous configuration")
			}
		case sig := <-quit:
			a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
			return a.Shutdown()
		}
	}
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.watcher != nil {
		a.watcher.stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(b config.Bindings) zerolog.Logger {
	level, err := zerolog.ParseLevel(b.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if b.LogFormat == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

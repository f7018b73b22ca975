package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/info3g/hikstar-celery/internal/controllers/restserver"
	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/internal/geometry"
	"github.com/info3g/hikstar-celery/internal/log"
	"github.com/info3g/hikstar-celery/internal/store"
	"github.com/info3g/hikstar-celery/pkg/config"
)

// refreshDrainTimeout is how long pending geometry refreshes get at shutdown
const refreshDrainTimeout = 15 * time.Second

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// OpenDatabase connects to the configured backend and migrates it to the
// latest schema
func OpenDatabase(cfg *config.ConfigData, logger *zap.SugaredLogger) (*database.Client, error) {
	client := database.NewClient(cfg.Storage, logger)
	if err := client.Connect(); err != nil {
		return nil, err
	}
	if err := client.Migrate(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// NewRefresher returns the geometry refresher for the backend, or nil when
// geometry refresh is disabled. PostgreSQL runs the configured database
// function; SQLite stitches section geometries in process.
func NewRefresher(cfg *config.ConfigData, client *database.Client, logger *zap.SugaredLogger) (*geometry.Refresher, error) {
	if !cfg.Geometry.Enabled {
		return nil, nil
	}

	var service geometry.Service
	if client.Backend() == config.BackendPostgres {
		service = geometry.NewFunctionService(client.DB, cfg.Geometry.Function)
	} else {
		service = geometry.NewStitchService(client.DB)
	}
	return geometry.NewRefresher(service, cfg.Geometry.Workers, logger)
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := OpenDatabase(a.config, a.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	var opts []store.Option
	refresher, err := NewRefresher(a.config, client, a.logger)
	if err != nil {
		return err
	}
	if refresher != nil {
		opts = append(opts, store.WithGeometry(refresher))
	}
	st := store.New(client.DB, a.logger, opts...)

	rest, err := restserver.NewController(ctx, &wg, a.config.Server, st, a.logger)
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	log.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()

	if refresher != nil {
		if err := refresher.Close(refreshDrainTimeout); err != nil {
			log.Warnf("geometry refresher: %v", err)
		}
	}
	log.Info("shutdown complete")

	return nil
}

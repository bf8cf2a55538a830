package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"camtrap/internal/config"
	"camtrap/internal/logger"
	"camtrap/internal/repository/sqlite"
	"camtrap/internal/routes"
	"camtrap/internal/services"
	"camtrap/internal/services/ai"
	"camtrap/internal/services/storage"
	"camtrap/internal/services/websocket"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *services.Manager
}

// NewApp validates cfg, opens the run store and wires the services.
// The model is loaded on the first batch.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	repos := services.Repositories{
		Runs:       sqlite.NewRunRepository(db),
		Images:     sqlite.NewImageRepository(db),
		Detections: sqlite.NewDetectionRepository(db),
	}
	buffer := storage.NewBufferService(repos.Images, repos.Detections, cfg.ResultBufferLimit, logger)
	hub := websocket.NewHubService(cfg, logger)
	mng := services.NewManager(InferencerFactory(cfg, logger), ai.NewImagingCodec(), repos, buffer, hub, cfg, logger)

	return &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		bufferService: buffer,
		hubService:    hub,
		manager:       mng,
	}, nil
}

func (a *App) Manager() *services.Manager {
	return a.manager
}

// Start runs the background services until ctx is done.
func (a *App) Start(ctx context.Context) {
	go a.bufferService.Run(ctx, a.config.ResultFlushInterval)
	go a.hubService.Run(ctx)
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.Start(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           routes.SetupRoutes(a.manager, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Camera trap detector listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Model: %s (%s, input %d)", a.config.ModelPath, a.config.ModelBackend, a.config.ModelInputSize)
	a.logger.Info("Database: %s", a.config.DatabasePath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Close stops a running batch, flushes pending results and closes the database.
func (a *App) Close() error {
	err := a.manager.Close()
	err = multierr.Append(err, a.bufferService.Flush())
	return multierr.Append(err, a.db.Close())
}

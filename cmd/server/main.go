package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"camtrap/internal/app"
	"camtrap/internal/config"
	"camtrap/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("Failed to start server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Error("Server stopped: %v", err)
	}
	if err := application.Close(); err != nil {
		log.Error("Shutdown: %v", err)
		os.Exit(1)
	}
}

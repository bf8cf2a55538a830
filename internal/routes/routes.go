package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"camtrap/internal/config"
	"camtrap/internal/handlers"
	"camtrap/internal/logger"
	"camtrap/internal/middleware"
	"camtrap/internal/services"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers static file serving, API and log endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Batch processing
	mux.HandleFunc("/api/process", handlers.ProcessHandler(manager, cfg, logger))
	mux.HandleFunc("/api/process/cancel", handlers.CancelHandler(manager, logger))
	mux.HandleFunc("/api/status", handlers.StatusHandler(manager, logger))
	mux.HandleFunc("/api/progress", handlers.ProgressWebsocketHandler(manager, logger))
	mux.HandleFunc("/api/is-dir", handlers.IsDirHandler(logger))

	// Results and exports
	mux.HandleFunc("/api/results", handlers.ResultsHandler(manager, logger))
	mux.HandleFunc("/api/runs", handlers.RunsHandler(manager, logger))
	mux.HandleFunc("/api/export", handlers.ExportHandler(manager, logger))
	mux.HandleFunc("/api/export/images", handlers.ExportImagesHandler(manager, logger))

	// Log endpoints
	for _, level := range []string{"info", "warning", "error"} {
		mux.HandleFunc("/logs/"+level, handlers.ShowLogsHandler(cfg, level))
		mux.HandleFunc("/logs/"+level+"/clear", handlers.ClearLogsHandler(logger, level))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(mux)
}

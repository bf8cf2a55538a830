package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"camtrap/internal/config"
	"camtrap/internal/logger"
	"camtrap/internal/services"
	"camtrap/internal/services/batch"

	"github.com/pkg/errors"
)

// processRequest is the body of POST /api/process. Omitted thresholds use the configured defaults.
type processRequest struct {
	RootDir             string   `json:"root_dir"`
	Recursive           bool     `json:"recursive"`
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	IOUThreshold        *float64 `json:"iou_threshold"`
}

func (p processRequest) toBatch(cfg *config.Config) batch.Request {
	req := batch.Request{
		RootDir:             p.RootDir,
		Recursive:           p.Recursive,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		IOUThreshold:        cfg.IOUThreshold,
	}
	if p.ConfidenceThreshold != nil {
		req.ConfidenceThreshold = *p.ConfidenceThreshold
	}
	if p.IOUThreshold != nil {
		req.IOUThreshold = *p.IOUThreshold
	}
	return req
}

// ProcessHandler starts a batch in the background and answers 202 with its run id.
// Progress is published on /api/progress.
func ProcessHandler(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}

		var body processRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", logger)
			return
		}

		runID, err := manager.StartBatch(body.toBatch(cfg))
		switch {
		case errors.Is(err, batch.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error(), logger)
			return
		case errors.Is(err, services.ErrBatchRunning):
			writeError(w, http.StatusConflict, err.Error(), logger)
			return
		case err != nil:
			logger.Error("Failed to start batch: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to start batch", logger)
			return
		}

		logger.Info("Batch %s requested for %s", runID, body.RootDir)
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID}, logger)
	}
}

// CancelHandler stops the running batch at the next file boundary.
func CancelHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		cancelled := manager.Cancel()
		if cancelled {
			logger.Info("Batch cancellation requested")
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled}, logger)
	}
}

// StatusHandler reports whether a batch is running and the id of the last finished one.
func StatusHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"running": manager.Running(),
			"dropped": manager.GetWebsocketService().Dropped(),
			"queued":  manager.GetWebsocketService().Queued(),
		}
		if last := manager.LastResult(); last != nil {
			status["last_run_id"] = last.RunID
		}
		writeJSON(w, http.StatusOK, status, logger)
	}
}

// IsDirHandler reports whether the "path" query parameter names an existing directory.
func IsDirHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			writeError(w, http.StatusBadRequest, "path parameter is required", logger)
			return
		}
		info, err := os.Stat(path)
		writeJSON(w, http.StatusOK, map[string]bool{"is_dir": err == nil && info.IsDir()}, logger)
	}
}

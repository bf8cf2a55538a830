package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"camtrap/internal/logger"
	"camtrap/internal/services"
	"camtrap/internal/services/export"
	"camtrap/internal/services/storage"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// ResultsHandler returns the BatchResult of the "run" query parameter, or of the last run.
func ResultsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := manager.Result(r.URL.Query().Get("run"))
		if err != nil {
			writeResultError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result, logger)
	}
}

// RunsHandler lists stored runs, newest first.
func RunsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := manager.Runs(atoiDefault(r.URL.Query().Get("limit"), 50))
		if err != nil {
			logger.Error("Failed to list runs: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list runs", logger)
			return
		}
		writeJSON(w, http.StatusOK, runs, logger)
	}
}

// ExportHandler downloads a run as CSV or JSON.
// Query: format=csv|json, run=<id>, absolute=true for absolute file paths.
func ExportHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		format := q.Get("format")
		if format != export.FormatCSV && format != export.FormatJSON {
			writeError(w, http.StatusBadRequest, "Unknown export format", logger)
			return
		}

		result, err := manager.Result(q.Get("run"))
		if err != nil {
			writeResultError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", export.ContentType(format))
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, result.RunID, format))
		if err := export.Write(w, format, result, cast.ToBool(q.Get("absolute"))); err != nil {
			logger.Error("Export of run %s failed: %v", result.RunID, err)
		}
	}
}

type exportImagesRequest struct {
	RunID     string                `json:"run_id"`
	OutputDir string                `json:"output_dir"`
	Filter    export.FilterCriteria `json:"filter"`
	Draw      export.DrawCriteria   `json:"draw"`
}

// ExportImagesHandler writes annotated copies of the matching images into output_dir.
func ExportImagesHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}

		var body exportImagesRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", logger)
			return
		}
		if body.OutputDir == "" {
			writeError(w, http.StatusBadRequest, "output_dir is required", logger)
			return
		}

		summary, err := manager.ExportImages(r.Context(), body.RunID, body.OutputDir, body.Filter, body.Draw)
		switch {
		case errors.Is(err, export.ErrSameDirectory):
			writeError(w, http.StatusBadRequest, "The export folder cannot be the same as the raw images folder.", logger)
			return
		case errors.Is(err, services.ErrNoResults), errors.Is(err, storage.ErrRunNotFound):
			writeResultError(w, err, logger)
			return
		case err != nil && summary.Matched == 0:
			writeResultError(w, err, logger)
			return
		case err != nil:
			logger.Warning("Image export finished with errors: %v", err)
		}

		writeJSON(w, http.StatusOK, summary, logger)
	}
}

func writeResultError(w http.ResponseWriter, err error, logger *logger.Logger) {
	if errors.Is(err, services.ErrNoResults) || errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error(), logger)
		return
	}
	logger.Error("Failed to load results: %v", err)
	writeError(w, http.StatusInternalServerError, "failed to load results", logger)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"camtrap/internal/logger"

	"github.com/spf13/cast"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError sends {"error": message} with the given status.
func writeError(w http.ResponseWriter, status int, message string, logger *logger.Logger) {
	writeJSON(w, status, map[string]string{"error": message}, logger)
}

// atoiDefault converts s to int or returns def when conversion fails or the value is <= 0.
func atoiDefault(s string, def int) int {
	if v, err := cast.ToIntE(s); err == nil && v > 0 {
		return v
	}
	return def
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

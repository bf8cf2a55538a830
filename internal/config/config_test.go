package config

import (
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.ModelBackend != BackendOpenCV {
		t.Errorf("Expected default backend %q, got %q", BackendOpenCV, cfg.ModelBackend)
	}
	if cfg.ModelInputSize != 1280 {
		t.Errorf("Expected default input size 1280, got %d", cfg.ModelInputSize)
	}
	if cfg.IOUThreshold != 0.45 {
		t.Errorf("Expected default IOU threshold 0.45, got %v", cfg.IOUThreshold)
	}
	if cfg.ETAWindow != 100 {
		t.Errorf("Expected default ETA window 100, got %d", cfg.ETAWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid, got %v", err)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_BACKEND", "ONNX")
	t.Setenv("MODEL_INPUT_SIZE", "640")
	t.Setenv("MODEL_LAYOUT", "transposed")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.35")
	t.Setenv("MODEL_LETTERBOXED", "false")
	t.Setenv("LEGACY_OVERLAP", "true")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.ModelBackend != BackendONNX {
		t.Errorf("Expected backend onnx, got %q", cfg.ModelBackend)
	}
	if cfg.ModelInputSize != 640 {
		t.Errorf("Expected input size 640, got %d", cfg.ModelInputSize)
	}
	if cfg.ModelLayout != LayoutTransposed {
		t.Errorf("Expected transposed layout, got %q", cfg.ModelLayout)
	}
	if cfg.ConfidenceThreshold != 0.35 {
		t.Errorf("Expected confidence 0.35, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.ModelLetterboxed {
		t.Error("Expected letterboxing disabled")
	}
	if !cfg.LegacyOverlap {
		t.Error("Expected legacy overlap enabled")
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("IOU_THRESHOLD", "abc")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Expected fallback port 8080, got %d", cfg.Port)
	}
	if cfg.IOUThreshold != 0.45 {
		t.Errorf("Expected fallback IOU 0.45, got %v", cfg.IOUThreshold)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Load()
	cfg.ModelBackend = "tensorflow"
	cfg.ModelInputSize = 100
	cfg.ConfidenceThreshold = 1.5
	cfg.IOUThreshold = -0.1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}

	errs := multierr.Errors(err)
	if len(errs) != 4 {
		t.Fatalf("Expected 4 errors, got %d: %v", len(errs), err)
	}
	if !strings.Contains(err.Error(), "tensorflow") {
		t.Errorf("Expected backend name in error, got %v", err)
	}
}

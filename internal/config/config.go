package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
)

// Supported inference backends.
const (
	BackendOpenCV = "opencv"
	BackendONNX   = "onnx"
)

// Supported model output layouts and scoring modes.
const (
	LayoutRows       = "rows"
	LayoutTransposed = "transposed"

	ScoringObjectness      = "objectness"
	ScoringObjectnessClass = "objectness_class"
)

type Config struct {
	Port     int
	Password string

	ModelPath        string
	ModelBackend     string
	ModelInputSize   int
	ModelLayout      string
	ModelScoring     string
	ModelLetterboxed bool
	ModelClasses     int
	PreferCUDA       bool
	OnnxLibraryPath  string

	ConfidenceThreshold float64
	IOUThreshold        float64
	LegacyOverlap       bool // reproduce the historical overlap formula in NMS

	DatabasePath        string
	ResultBufferLimit   int // results buffered before a flush to the database
	ResultFlushInterval int // seconds between periodic flushes
	ProgressQueueSize   int // snapshots queued for websocket clients before dropping
	ETAWindow           int

	LogDirectory string
	LogLevel     string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Password: getEnv("PASSWORD", "camtrap"),

		ModelPath:        getEnv("MODEL_PATH", filepath.Join(".", "models", "md_v5a.0.0.onnx")),
		ModelBackend:     strings.ToLower(getEnv("MODEL_BACKEND", BackendOpenCV)),
		ModelInputSize:   getEnvAsInt("MODEL_INPUT_SIZE", 1280),
		ModelLayout:      strings.ToLower(getEnv("MODEL_LAYOUT", LayoutRows)),
		ModelScoring:     strings.ToLower(getEnv("MODEL_SCORING", ScoringObjectness)),
		ModelLetterboxed: getEnvAsBool("MODEL_LETTERBOXED", true),
		ModelClasses:     getEnvAsInt("MODEL_CLASSES", 3),
		PreferCUDA:       getEnvAsBool("PREFER_CUDA", false),
		OnnxLibraryPath:  getEnv("ONNXRUNTIME_LIB", ""),

		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.2),
		IOUThreshold:        getEnvAsFloat("IOU_THRESHOLD", 0.45),
		LegacyOverlap:       getEnvAsBool("LEGACY_OVERLAP", false),

		DatabasePath:        getEnv("DATABASE_PATH", filepath.Join(".", "data", "camtrap.db")),
		ResultBufferLimit:   getEnvAsInt("RESULT_BUFFER_LIMIT", 50),
		ResultFlushInterval: getEnvAsInt("RESULT_FLUSH_INTERVAL", 10),
		ProgressQueueSize:   getEnvAsInt("PROGRESS_QUEUE_SIZE", 64),
		ETAWindow:           getEnvAsInt("ETA_WINDOW", 100),

		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	if c.Port <= 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.ModelPath == "" {
		err = multierr.Append(err, fmt.Errorf("model path is empty"))
	}
	switch c.ModelBackend {
	case BackendOpenCV, BackendONNX:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown model backend %q", c.ModelBackend))
	}
	if c.ModelInputSize <= 0 || c.ModelInputSize%32 != 0 {
		err = multierr.Append(err, fmt.Errorf("model input size must be a positive multiple of 32, got %d", c.ModelInputSize))
	}
	switch c.ModelLayout {
	case LayoutRows, LayoutTransposed:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown model layout %q", c.ModelLayout))
	}
	switch c.ModelScoring {
	case ScoringObjectness, ScoringObjectnessClass:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown model scoring %q", c.ModelScoring))
	}
	if c.ModelClasses < 0 {
		err = multierr.Append(err, fmt.Errorf("model classes cannot be negative"))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		err = multierr.Append(err, fmt.Errorf("confidence threshold %v outside [0,1]", c.ConfidenceThreshold))
	}
	if c.IOUThreshold < 0 || c.IOUThreshold > 1 {
		err = multierr.Append(err, fmt.Errorf("iou threshold %v outside [0,1]", c.IOUThreshold))
	}
	if c.ResultBufferLimit <= 0 {
		err = multierr.Append(err, fmt.Errorf("result buffer limit must be positive"))
	}
	if c.ETAWindow <= 0 {
		err = multierr.Append(err, fmt.Errorf("eta window must be positive"))
	}

	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := cast.ToIntE(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := cast.ToFloat64E(value); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := cast.ToBoolE(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

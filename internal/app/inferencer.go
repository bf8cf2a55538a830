package app

import (
	"camtrap/internal/config"
	"camtrap/internal/logger"
	"camtrap/internal/services"
	"camtrap/internal/services/ai"
	"camtrap/internal/services/ai/onnx"
	"camtrap/internal/services/ai/opencv"

	"github.com/pkg/errors"
)

// NewInferencer loads the model with the configured backend.
func NewInferencer(cfg *config.Config, logger *logger.Logger) (ai.Inferencer, error) {
	switch cfg.ModelBackend {
	case config.BackendOpenCV:
		return opencv.New(opencv.Options{
			ModelPath:  cfg.ModelPath,
			InputSize:  cfg.ModelInputSize,
			PreferCUDA: cfg.PreferCUDA,
		}, logger)
	case config.BackendONNX:
		return onnx.New(onnx.Options{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.OnnxLibraryPath,
			InputSize:   cfg.ModelInputSize,
			PreferCUDA:  cfg.PreferCUDA,
		}, logger)
	}
	return nil, errors.Errorf("unknown model backend %q", cfg.ModelBackend)
}

// InferencerFactory defers NewInferencer until the first batch.
func InferencerFactory(cfg *config.Config, logger *logger.Logger) services.InferencerFactory {
	return func() (ai.Inferencer, error) {
		return NewInferencer(cfg, logger)
	}
}

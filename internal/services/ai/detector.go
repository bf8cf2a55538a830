package ai

import (
	"context"
	"fmt"

	"camtrap/internal/logger"
	"camtrap/internal/models"

	"github.com/pkg/errors"
)

// Stage is a step of the per-image detection pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StagePreprocessing
	StageInferring
	StageDecoding
	StagePostProcessing
	StageDone
	StageFailed
)

var stageNames = [...]string{"idle", "preprocessing", "inferring", "decoding", "postprocessing", "done", "failed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageObserver is notified on every pipeline transition.
type StageObserver func(path string, stage Stage)

// DetectorConfig describes the loaded model.
type DetectorConfig struct {
	InputSize     int
	Letterboxed   bool // output is relative to the letterboxed canvas and must be mapped back
	LegacyOverlap bool
	Layout        Layout
	Scoring       Scoring
	Classes       int
}

// Detector runs decode, letterbox, inference, decoding and suppression for one image.
type Detector struct {
	inferencer Inferencer
	codec      ImageCodec
	decoder    Decoder
	config     DetectorConfig
	observer   StageObserver
	logger     *logger.Logger
}

// NewDetector creates a Detector around an already loaded Inferencer.
func NewDetector(inferencer Inferencer, codec ImageCodec, config DetectorConfig, logger *logger.Logger) *Detector {
	return &Detector{
		inferencer: inferencer,
		codec:      codec,
		decoder: Decoder{
			Layout:    config.Layout,
			Scoring:   config.Scoring,
			InputSize: config.InputSize,
			Classes:   config.Classes,
		},
		config: config,
		logger: logger,
	}
}

// SetObserver installs an observer for stage transitions.
func (d *Detector) SetObserver(observer StageObserver) {
	d.observer = observer
}

// Detect processes one image. Per-file problems are reported in the returned
// ImageDetections. The only error returned wraps ErrModelCorrupted, in which case
// the result still carries the failure for this file.
func (d *Detector) Detect(ctx context.Context, path string, confidenceThreshold, iouThreshold float64) (models.ImageDetections, error) {
	d.transition(path, StagePreprocessing)

	img, err := d.codec.Decode(path)
	if err != nil {
		return d.fail(path, fmt.Sprintf("unreadable image: %v", err)), nil
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	canvas, params := Letterbox(img, d.config.InputSize)
	input := ImageToTensor(canvas)

	d.transition(path, StageInferring)
	output, err := d.infer(ctx, input)
	if err != nil {
		result := d.fail(path, fmt.Sprintf("inference failed: %v", err))
		if errors.Is(err, ErrModelCorrupted) {
			return result, errors.Wrapf(err, "inference on %s", path)
		}
		return result, nil
	}

	d.transition(path, StageDecoding)
	candidates, err := d.decoder.Decode(output)
	if err != nil {
		return d.fail(path, fmt.Sprintf("inference failed: %v", err)), nil
	}

	d.transition(path, StagePostProcessing)
	suppression := SuppressionConfig{
		ConfidenceThreshold: confidenceThreshold,
		IOUThreshold:        iouThreshold,
		LegacyOverlap:       d.config.LegacyOverlap,
	}
	kept := suppression.Apply(candidates)
	for i := range kept {
		if d.config.Letterboxed {
			kept[i] = params.ToSource(kept[i])
		} else {
			kept[i] = kept[i].Clipped()
		}
	}

	d.transition(path, StageDone)
	d.logger.Debug("%s: %d candidates, %d kept", path, len(candidates), len(kept))
	return models.NewImageDetections(path, width, height, kept), nil
}

// infer calls the Inferencer, turning a panic in the backend into an error.
func (d *Detector) infer(ctx context.Context, input Tensor) (output Tensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("inference panicked: %v", r)
		}
	}()

	if d.inferencer == nil {
		return Tensor{}, ErrModelNotLoaded
	}
	return d.inferencer.Infer(ctx, input)
}

func (d *Detector) fail(path, message string) models.ImageDetections {
	d.transition(path, StageFailed)
	d.logger.Warning("Detection failed for %s: %s", path, message)
	return models.NewFailedDetections(path, message)
}

func (d *Detector) transition(path string, stage Stage) {
	d.logger.Debug("%s -> %s", path, stage)
	if d.observer != nil {
		d.observer(path, stage)
	}
}

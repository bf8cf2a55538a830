// Package batch drives detection over a directory of images.
package batch

import (
	"context"
	"fmt"
	"time"

	"camtrap/internal/logger"
	"camtrap/internal/models"
	"camtrap/internal/services/ai"
	"camtrap/internal/services/eta"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Progress messages.
const (
	MessageLoading    = "Loading model..."
	MessageProcessing = "Processing"
	MessageComplete   = "Processing Complete"
	MessageCancelled  = "Processing Cancelled"
	MessageAborted    = "Processing Aborted"
)

// Pipeline detects objects in a single image.
type Pipeline interface {
	Detect(ctx context.Context, path string, confidenceThreshold, iouThreshold float64) (models.ImageDetections, error)
}

// ProgressSink receives progress snapshots. Publish must not block.
type ProgressSink interface {
	Publish(snapshot models.ProgressSnapshot)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(snapshot models.ProgressSnapshot)

func (f ProgressFunc) Publish(snapshot models.ProgressSnapshot) { f(snapshot) }

// ResultSink observes each result as it is appended.
type ResultSink interface {
	Add(runID string, index int, result models.ImageDetections)
}

type nopProgress struct{}

func (nopProgress) Publish(models.ProgressSnapshot) {}

// Driver runs a Pipeline over every image of a request, one file at a time.
type Driver struct {
	pipeline  Pipeline
	progress  ProgressSink
	results   ResultSink
	etaWindow int
	clock     eta.Clock
	logger    *logger.Logger
}

// Option customizes a Driver.
type Option func(*Driver)

// WithProgress sets the progress sink.
func WithProgress(sink ProgressSink) Option {
	return func(d *Driver) { d.progress = sink }
}

// WithResultSink sets the result sink.
func WithResultSink(sink ResultSink) Option {
	return func(d *Driver) { d.results = sink }
}

// WithETAWindow sets the number of durations averaged for the ETA.
func WithETAWindow(window int) Option {
	return func(d *Driver) { d.etaWindow = window }
}

// WithClock replaces the clock used by the ETA estimator.
func WithClock(clock eta.Clock) Option {
	return func(d *Driver) { d.clock = clock }
}

// NewDriver creates a Driver for pipeline.
func NewDriver(pipeline Pipeline, logger *logger.Logger, opts ...Option) *Driver {
	d := &Driver{
		pipeline:  pipeline,
		progress:  nopProgress{},
		etaWindow: eta.DefaultWindow,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes every candidate file of req in enumeration order. Per-file failures
// are recorded in the result. Cancellation is checked between files; on cancellation
// or a corrupted model the partial result is returned together with the error.
func (d *Driver) Run(ctx context.Context, req Request) (*models.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	files, err := Enumerate(req.RootDir, req.Recursive)
	if err != nil {
		return nil, errors.Wrapf(err, "enumerate %s", req.RootDir)
	}

	total := len(files)
	result := &models.BatchResult{
		RunID:   runID,
		BaseDir: req.RootDir,
		Images:  make([]models.ImageDetections, 0, total),
	}

	d.logger.Info("Batch %s started: %d images in %s (recursive=%t)", runID, total, req.RootDir, req.Recursive)
	d.emit(runID, 0, total, "", MessageLoading, nil)

	var etaOpts []eta.Option
	if d.clock != nil {
		etaOpts = append(etaOpts, eta.WithClock(d.clock))
	}
	estimator := eta.New(d.etaWindow, total, etaOpts...)
	estimator.Start()

	for i, path := range files {
		select {
		case <-ctx.Done():
			d.logger.Warning("Batch %s cancelled after %d/%d images", runID, i, total)
			d.emit(runID, i, total, "", MessageCancelled, nil)
			return result, errors.Wrap(ctx.Err(), "batch cancelled")
		default:
		}

		d.emit(runID, i, total, path, MessageProcessing, estimator.ETA())

		detections, err := d.detect(ctx, path, req)
		result.Images = append(result.Images, detections)
		if d.results != nil {
			d.results.Add(runID, i, detections)
		}
		estimator.Tick()

		if err != nil {
			d.logger.Error("Batch %s aborted at %s: %v", runID, path, err)
			d.emit(runID, i+1, total, path, MessageAborted, nil)
			return result, errors.Wrapf(err, "batch aborted after %d/%d images", i+1, total)
		}
	}

	d.progress.Publish(models.NewProgressSnapshot(runID, total, total, "", MessageComplete, nil).Done())
	d.logger.Info("Batch %s complete: %d images", runID, total)
	return result, nil
}

// detect isolates one file. Only ai.ErrModelCorrupted is returned; any other
// failure, including a panic, becomes an error row.
func (d *Driver) detect(ctx context.Context, path string, req Request) (result models.ImageDetections, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = models.NewFailedDetections(path, fmt.Sprintf("detection panicked: %v", r))
			err = nil
		}
	}()

	result, err = d.pipeline.Detect(ctx, path, req.ConfidenceThreshold, req.IOUThreshold)
	result.File = path
	if err == nil {
		return result, nil
	}
	if !result.Failed() {
		result = models.NewFailedDetections(path, err.Error())
	}
	if errors.Is(err, ai.ErrModelCorrupted) {
		return result, err
	}
	return result, nil
}

func (d *Driver) emit(runID string, current, total int, path, message string, remaining *time.Duration) {
	d.progress.Publish(models.NewProgressSnapshot(runID, current, total, path, message, remaining))
}

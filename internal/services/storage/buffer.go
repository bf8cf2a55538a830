package storage

import (
	"context"
	"sync"
	"time"

	"camtrap/internal/logger"
	"camtrap/internal/models"
	"camtrap/internal/repository"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type pendingResult struct {
	RunID    string
	Position int
	Result   models.ImageDetections
}

// BufferService collects per-file results and writes them to the repositories in
// batches: when the buffer is full, on a ticker, and on demand.
type BufferService struct {
	images      repository.ImageRepository
	detections  repository.DetectionRepository
	pending     []pendingResult
	bufferLimit int
	mu          sync.Mutex
	flushMu     sync.Mutex
	logger      *logger.Logger
}

func NewBufferService(images repository.ImageRepository, detections repository.DetectionRepository, bufferLimit int, logger *logger.Logger) *BufferService {
	if bufferLimit <= 0 {
		bufferLimit = 1
	}
	return &BufferService{
		images:      images,
		detections:  detections,
		bufferLimit: bufferLimit,
		pending:     make([]pendingResult, 0, bufferLimit),
		logger:      logger,
	}
}

// Run flushes every flushInterval seconds until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context, flushInterval int) {
	if flushInterval <= 0 {
		flushInterval = 1
	}
	ticker := time.NewTicker(time.Duration(flushInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				s.logger.Error("Final flush failed: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Error("Periodic flush failed: %v", err)
			}
		}
	}
}

// Add buffers one result. It satisfies batch.ResultSink.
func (s *BufferService) Add(runID string, index int, result models.ImageDetections) {
	s.mu.Lock()
	s.pending = append(s.pending, pendingResult{RunID: runID, Position: index, Result: result})
	full := len(s.pending) >= s.bufferLimit
	s.logger.Debug("Buffer size: %d/%d", len(s.pending), s.bufferLimit)
	s.mu.Unlock()

	if full {
		if err := s.Flush(); err != nil {
			s.logger.Error("Flush on full buffer failed: %v", err)
		}
	}
}

// Pending returns the number of buffered results.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush writes every buffered result. Rows that fail are reported and not retried.
func (s *BufferService) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.pending
	s.pending = make([]pendingResult, 0, s.bufferLimit)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var err error
	for _, item := range batch {
		err = multierr.Append(err, s.store(item))
	}

	s.logger.Info("Flushed %d results to the database", len(batch))
	return err
}

func (s *BufferService) store(item pendingResult) error {
	record := &models.ImageRecord{
		RunID:    item.RunID,
		Position: item.Position,
		File:     item.Result.File,
		Width:    item.Result.ImageWidth,
		Height:   item.Result.ImageHeight,
		Error:    item.Result.Error,
	}
	imageID, err := s.images.Insert(record)
	if err != nil {
		return errors.Wrapf(err, "store %s", item.Result.File)
	}

	if len(item.Result.Detections) == 0 {
		return nil
	}
	detections := make([]models.DetectionRecord, len(item.Result.Detections))
	for i, d := range item.Result.Detections {
		detections[i] = models.DetectionRecord{ImageID: imageID, Detection: d}
	}
	return errors.Wrapf(s.detections.InsertBatch(detections), "store detections of %s", item.Result.File)
}

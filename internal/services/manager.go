package services

import (
	"context"
	"sync"
	"time"

	"camtrap/internal/config"
	"camtrap/internal/logger"
	"camtrap/internal/models"
	"camtrap/internal/repository"
	"camtrap/internal/services/ai"
	"camtrap/internal/services/batch"
	"camtrap/internal/services/export"
	"camtrap/internal/services/storage"
	"camtrap/internal/services/websocket"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var (
	ErrBatchRunning = errors.New("a batch is already running")
	ErrModelLoad    = errors.New("failed to load model")
	ErrNoResults    = errors.New("no results available")
)

// InferencerFactory loads the model. It is called once, on the first batch.
type InferencerFactory func() (ai.Inferencer, error)

// Repositories groups the run store.
type Repositories struct {
	Runs       repository.RunRepository
	Images     repository.ImageRepository
	Detections repository.DetectionRepository
}

// Manager owns the model and runs one batch at a time. Progress goes to the
// websocket hub, per-file results to the buffer service.
type Manager struct {
	factory          InferencerFactory
	codec            ai.ImageCodec
	repos            Repositories
	bufferService    *storage.BufferService
	websocketService *websocket.HubService
	imageExporter    *export.ImageExporter
	config           *config.Config
	logger           *logger.Logger

	modelMu    sync.Mutex
	inferencer ai.Inferencer
	detector   *ai.Detector

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	last    *models.BatchResult
	wg      sync.WaitGroup
}

func NewManager(factory InferencerFactory, codec ai.ImageCodec, repos Repositories, bufferService *storage.BufferService, websocketService *websocket.HubService, config *config.Config, logger *logger.Logger) *Manager {
	return &Manager{
		factory:          factory,
		codec:            codec,
		repos:            repos,
		bufferService:    bufferService,
		websocketService: websocketService,
		imageExporter:    export.NewImageExporter(codec, logger),
		config:           config,
		logger:           logger,
	}
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

// DetectorConfig translates the model settings of cfg.
func DetectorConfig(cfg *config.Config) (ai.DetectorConfig, error) {
	layout, err := ai.ParseLayout(cfg.ModelLayout)
	if err != nil {
		return ai.DetectorConfig{}, err
	}
	scoring, err := ai.ParseScoring(cfg.ModelScoring)
	if err != nil {
		return ai.DetectorConfig{}, err
	}
	return ai.DetectorConfig{
		InputSize:     cfg.ModelInputSize,
		Letterboxed:   cfg.ModelLetterboxed,
		LegacyOverlap: cfg.LegacyOverlap,
		Layout:        layout,
		Scoring:       scoring,
		Classes:       cfg.ModelClasses,
	}, nil
}

// loadDetector loads the model on first use and keeps it for the Manager's lifetime.
// A failed load is retried on the next batch.
func (m *Manager) loadDetector() (*ai.Detector, error) {
	m.modelMu.Lock()
	defer m.modelMu.Unlock()

	if m.detector != nil {
		return m.detector, nil
	}

	detectorConfig, err := DetectorConfig(m.config)
	if err != nil {
		return nil, errors.Wrap(ErrModelLoad, err.Error())
	}

	start := time.Now()
	inferencer, err := m.factory()
	if err != nil {
		return nil, errors.Wrap(ErrModelLoad, err.Error())
	}
	m.logger.Info("Model loaded from %s in %v", m.config.ModelPath, time.Since(start))

	m.inferencer = inferencer
	m.detector = ai.NewDetector(inferencer, m.codec, detectorConfig, m.logger)
	m.detector.SetObserver(func(path string, stage ai.Stage) {
		m.logger.Debug("%s: %s", path, stage)
	})
	return m.detector, nil
}

// unloadDetector releases the model so the next batch loads a fresh session.
func (m *Manager) unloadDetector() {
	m.modelMu.Lock()
	defer m.modelMu.Unlock()
	if m.inferencer == nil {
		return
	}
	if err := m.inferencer.Close(); err != nil {
		m.logger.Error("Failed to release corrupted model: %v", err)
	}
	m.inferencer = nil
	m.detector = nil
	m.logger.Warning("Model session corrupted, it will be reloaded on the next batch")
}

// StartBatch validates req and runs it in the background. It returns the run id.
func (m *Manager) StartBatch(req batch.Request) (string, error) {
	req, err := m.acquire(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if _, err := m.execute(ctx, req); err != nil {
			m.logger.Error("Batch %s ended with error: %v", req.RunID, err)
		}
	}()

	return req.RunID, nil
}

// RunBatch runs req synchronously. On cancellation or model failure the partial
// result is returned together with the error.
func (m *Manager) RunBatch(ctx context.Context, req batch.Request) (*models.BatchResult, error) {
	req, err := m.acquire(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	return m.execute(ctx, req)
}

// Cancel stops the running batch at the next file boundary.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Running reports whether a batch is in progress.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastResult returns the result of the most recent batch, which may be partial.
func (m *Manager) LastResult() *models.BatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Result returns the result of runID, from memory when it is the last run and
// from the run store otherwise. An empty runID means the last run.
func (m *Manager) Result(runID string) (*models.BatchResult, error) {
	if last := m.LastResult(); last != nil && (runID == "" || runID == last.RunID) {
		return last, nil
	}
	if runID == "" {
		latest, err := m.repos.Runs.GetLatest()
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, ErrNoResults
		}
		runID = latest.ID
	}
	return storage.LoadBatchResult(m.repos.Runs, m.repos.Images, m.repos.Detections, runID)
}

// Runs lists stored runs, newest first.
func (m *Manager) Runs(limit int) ([]models.Run, error) {
	return m.repos.Runs.GetAll(limit)
}

// ExportImages writes annotated copies of the matching images of runID.
func (m *Manager) ExportImages(ctx context.Context, runID, outputDir string, filter export.FilterCriteria, draw export.DrawCriteria) (export.ImageSummary, error) {
	result, err := m.Result(runID)
	if err != nil {
		return export.ImageSummary{}, err
	}
	return m.imageExporter.Export(ctx, result, outputDir, filter, draw)
}

// Close cancels a running batch, waits for it and releases the model.
func (m *Manager) Close() error {
	m.Cancel()
	m.wg.Wait()

	m.modelMu.Lock()
	defer m.modelMu.Unlock()
	if m.inferencer == nil {
		return nil
	}
	err := m.inferencer.Close()
	m.inferencer = nil
	m.detector = nil
	m.logger.Info("Model released")
	return err
}

func (m *Manager) acquire(req batch.Request) (batch.Request, error) {
	if err := req.Validate(); err != nil {
		return req, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return req, ErrBatchRunning
	}
	m.running = true
	return req, nil
}

func (m *Manager) release(result *models.BatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result != nil {
		m.last = result
	}
	m.running = false
	m.cancel = nil
}

func (m *Manager) execute(ctx context.Context, req batch.Request) (result *models.BatchResult, err error) {
	defer func() { m.release(result) }()

	detector, err := m.loadDetector()
	if err != nil {
		m.websocketService.Publish(models.NewProgressSnapshot(req.RunID, 0, 0, "", batch.MessageAborted, nil))
		return nil, err
	}

	run := &models.Run{
		ID:                  req.RunID,
		BaseDir:             req.RootDir,
		Recursive:           req.Recursive,
		ConfidenceThreshold: req.ConfidenceThreshold,
		IOUThreshold:        req.IOUThreshold,
		Status:              models.RunStatusRunning,
		StartedAt:           time.Now(),
	}
	if err := m.repos.Runs.Insert(run); err != nil {
		return nil, errors.Wrap(err, "record run")
	}

	total := 0
	progress := batch.ProgressFunc(func(snapshot models.ProgressSnapshot) {
		total = snapshot.Total
		m.websocketService.Publish(snapshot)
	})
	driver := batch.NewDriver(detector, m.logger,
		batch.WithProgress(progress),
		batch.WithResultSink(m.bufferService),
		batch.WithETAWindow(m.config.ETAWindow),
	)

	result, err = driver.Run(ctx, req)
	if errors.Is(err, ai.ErrModelCorrupted) {
		m.unloadDetector()
	}

	status := models.RunStatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = models.RunStatusCancelled
	default:
		status = models.RunStatusFailed
	}

	storeErr := m.bufferService.Flush()
	storeErr = multierr.Append(storeErr, m.repos.Runs.SetTotal(run.ID, total))
	storeErr = multierr.Append(storeErr, m.repos.Runs.Finish(run.ID, status, time.Now()))
	if storeErr != nil {
		m.logger.Error("Failed to store run %s: %v", run.ID, storeErr)
	}

	m.logger.Info("Run %s finished with status %s", run.ID, status)
	return result, err
}

// Import stores previously exported results as a completed run and returns its id.
func (m *Manager) Import(baseDir string, images []models.ImageDetections) (string, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return "", ErrBatchRunning
	}
	m.running = true
	m.mu.Unlock()
	defer m.release(nil)

	now := time.Now()
	run := &models.Run{
		ID:        uuid.NewString(),
		BaseDir:   baseDir,
		Recursive: true,
		Status:    models.RunStatusRunning,
		StartedAt: now,
	}
	if err := m.repos.Runs.Insert(run); err != nil {
		return "", errors.Wrap(err, "record run")
	}

	for i, img := range images {
		m.bufferService.Add(run.ID, i, img)
	}
	err := m.bufferService.Flush()
	status := models.RunStatusCompleted
	if err != nil {
		status = models.RunStatusFailed
	}
	err = multierr.Append(err, m.repos.Runs.SetTotal(run.ID, len(images)))
	err = multierr.Append(err, m.repos.Runs.Finish(run.ID, status, now))
	if err != nil {
		return run.ID, err
	}

	m.logger.Info("Imported %d results as run %s", len(images), run.ID)
	return run.ID, nil
}

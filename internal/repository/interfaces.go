package repository

import (
	"time"

	"camtrap/internal/models"
)

// RunRepository defines the interface for batch run operations.
type RunRepository interface {
	// Create operations
	Insert(run *models.Run) error

	// Update operations
	SetTotal(id string, total int) error
	Finish(id, status string, finishedAt time.Time) error

	// Read operations
	GetByID(id string) (*models.Run, error)
	GetAll(limit int) ([]models.Run, error)
	GetLatest() (*models.Run, error)

	// Delete operations
	Delete(id string) error
}

// ImageRepository defines the interface for per-file result operations.
type ImageRepository interface {
	// Create operations
	Insert(img *models.ImageRecord) (int64, error)

	// Read operations
	GetByRunID(runID string) ([]models.ImageRecord, error)
	CountByRunID(runID string) (int, error)

	// Delete operations
	DeleteByRunID(runID string) error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	Insert(det *models.DetectionRecord) (int64, error)
	InsertBatch(detections []models.DetectionRecord) error

	// Read operations
	GetByImageID(imageID int64) ([]models.DetectionRecord, error)
	CountByClass(runID string) (map[int]int, error)

	// Delete operations
	DeleteByImageID(imageID int64) error
}

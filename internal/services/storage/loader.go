package storage

import (
	"camtrap/internal/models"
	"camtrap/internal/repository"

	"github.com/pkg/errors"
)

// ErrRunNotFound is returned when a stored run does not exist.
var ErrRunNotFound = errors.New("run not found")

// LoadBatchResult rebuilds the BatchResult of a stored run.
func LoadBatchResult(runs repository.RunRepository, images repository.ImageRepository, detections repository.DetectionRepository, runID string) (*models.BatchResult, error) {
	run, err := runs.GetByID(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", runID)
	}

	records, err := images.GetByRunID(runID)
	if err != nil {
		return nil, err
	}

	result := &models.BatchResult{
		RunID:   run.ID,
		BaseDir: run.BaseDir,
		Images:  make([]models.ImageDetections, 0, len(records)),
	}
	for _, record := range records {
		img := models.ImageDetections{
			File:        record.File,
			ImageWidth:  record.Width,
			ImageHeight: record.Height,
			Error:       record.Error,
			Detections:  []models.Detection{},
		}
		if record.Error == nil {
			stored, err := detections.GetByImageID(record.ID)
			if err != nil {
				return nil, err
			}
			for _, d := range stored {
				img.Detections = append(img.Detections, d.Detection)
			}
		}
		result.Images = append(result.Images, img)
	}

	return result, nil
}

package models

import "time"

// ImageDetections is the outcome of running detection on one file.
// Either Error is set or Detections holds the (possibly empty) result.
type ImageDetections struct {
	File        string      `json:"file"`
	ImageWidth  *int        `json:"image_width"`
	ImageHeight *int        `json:"image_height"`
	Error       *string     `json:"error,omitempty"`
	Detections  []Detection `json:"detections"`
}

// Failed reports whether the file could not be processed.
func (r ImageDetections) Failed() bool {
	return r.Error != nil
}

// Empty reports whether the file was processed and nothing was found.
func (r ImageDetections) Empty() bool {
	return r.Error == nil && len(r.Detections) == 0
}

// WithFile returns a copy with File replaced. Detections are shared, they are never mutated.
func (r ImageDetections) WithFile(file string) ImageDetections {
	r.File = file
	return r
}

// NewFailedDetections builds an error result for file.
func NewFailedDetections(file, message string) ImageDetections {
	return ImageDetections{File: file, Error: &message}
}

// NewImageDetections builds a successful result.
func NewImageDetections(file string, width, height int, detections []Detection) ImageDetections {
	if detections == nil {
		detections = []Detection{}
	}
	return ImageDetections{
		File:        file,
		ImageWidth:  &width,
		ImageHeight: &height,
		Detections:  detections,
	}
}

// BatchResult is the ordered output of one batch run.
type BatchResult struct {
	RunID   string            `json:"run_id"`
	BaseDir string            `json:"base_dir"`
	Images  []ImageDetections `json:"images"`
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// Run is a stored batch run.
type Run struct {
	ID                  string     `json:"id"`
	BaseDir             string     `json:"base_dir"`
	Recursive           bool       `json:"recursive"`
	ConfidenceThreshold float64    `json:"confidence_threshold"`
	IOUThreshold        float64    `json:"iou_threshold"`
	Status              string     `json:"status"`
	Total               int        `json:"total"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
}

// ImageRecord is one stored row of a run. Position keeps enumeration order.
type ImageRecord struct {
	ID       int64   `json:"id"`
	RunID    string  `json:"run_id"`
	Position int     `json:"position"`
	File     string  `json:"file"`
	Width    *int    `json:"width"`
	Height   *int    `json:"height"`
	Error    *string `json:"error,omitempty"`
}

// DetectionRecord is one stored detection of an ImageRecord.
type DetectionRecord struct {
	ID        int64 `json:"id"`
	ImageID   int64 `json:"image_id"`
	Detection
}

package export

import (
	"encoding/json"
	"io"
	"path/filepath"

	"camtrap/internal/models"

	"github.com/pkg/errors"
)

type jsonDetection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Category   int     `json:"category"`
	Confidence float64 `json:"confidence"`
}

type jsonImage struct {
	File        string          `json:"file"`
	Error       *string         `json:"error,omitempty"`
	ImageWidth  *int            `json:"image_width"`
	ImageHeight *int            `json:"image_height"`
	Detections  []jsonDetection `json:"detections"`
}

type jsonContainer struct {
	Images     []jsonImage       `json:"images"`
	Categories []models.Category `json:"categories"`
}

// WriteJSON writes the images and the category table as one indented document.
// Geometry stays normalized, category is the 1-based id from the category table.
func WriteJSON(w io.Writer, images []models.ImageDetections) error {
	container := jsonContainer{
		Images:     make([]jsonImage, 0, len(images)),
		Categories: models.CategoryList(),
	}
	for _, img := range images {
		out := jsonImage{
			File:        img.File,
			Error:       img.Error,
			ImageWidth:  img.ImageWidth,
			ImageHeight: img.ImageHeight,
			Detections:  make([]jsonDetection, 0, len(img.Detections)),
		}
		for _, d := range img.Detections {
			out.Detections = append(out.Detections, jsonDetection{
				X:          d.X,
				Y:          d.Y,
				Width:      d.Width,
				Height:     d.Height,
				Category:   d.CategoryID(),
				Confidence: d.Confidence,
			})
		}
		container.Images = append(container.Images, out)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(container), "encode json export")
}

// ReadJSON parses a document written by WriteJSON. Relative file paths are joined
// with baseDir and category ids are mapped back to class indices.
func ReadJSON(r io.Reader, baseDir string) ([]models.ImageDetections, error) {
	var container jsonContainer
	if err := json.NewDecoder(r).Decode(&container); err != nil {
		return nil, errors.Wrap(err, "decode json export")
	}

	images := make([]models.ImageDetections, 0, len(container.Images))
	for i, img := range container.Images {
		file := filepath.FromSlash(img.File)
		if baseDir != "" && !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		if img.Error != nil {
			images = append(images, models.NewFailedDetections(file, *img.Error))
			continue
		}
		if img.ImageWidth == nil || img.ImageHeight == nil {
			return nil, errors.Errorf("image %d (%s) has no dimensions", i, img.File)
		}

		detections := make([]models.Detection, 0, len(img.Detections))
		for _, d := range img.Detections {
			if d.Category < models.CategoryAnimal || d.Category >= len(models.Categories) {
				return nil, errors.Errorf("image %d (%s): unknown category %d", i, img.File, d.Category)
			}
			detections = append(detections, models.Detection{
				X:          d.X,
				Y:          d.Y,
				Width:      d.Width,
				Height:     d.Height,
				ClassIndex: d.Category - 1,
				Confidence: d.Confidence,
			})
		}
		images = append(images, models.NewImageDetections(file, *img.ImageWidth, *img.ImageHeight, detections))
	}
	return images, nil
}

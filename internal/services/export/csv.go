package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"camtrap/internal/models"

	"github.com/pkg/errors"
)

var csvHeader = []string{
	"file", "error", "image_width", "image_height",
	"x", "y", "width", "height", "category", "confidence",
}

// WriteCSV writes one row per detection. Files that failed get a single row carrying
// the error, files without detections a single "Empty" row. Geometry is in pixels.
func WriteCSV(w io.Writer, images []models.ImageDetections) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	for _, img := range images {
		for _, row := range csvRows(img) {
			if err := writer.Write(row); err != nil {
				return errors.Wrapf(err, "write csv row for %s", img.File)
			}
		}
	}

	writer.Flush()
	return errors.Wrap(writer.Error(), "flush csv")
}

func csvRows(img models.ImageDetections) [][]string {
	switch {
	case img.Failed():
		return [][]string{{img.File, *img.Error, "", "", "", "", "", "", "", ""}}
	case img.Empty():
		return [][]string{{img.File, "", "", "", "", "", "", "", models.Categories[models.CategoryEmpty], ""}}
	}

	width, height := dimension(img.ImageWidth), dimension(img.ImageHeight)
	rows := make([][]string, 0, len(img.Detections))
	for _, d := range img.Detections {
		rows = append(rows, []string{
			img.File,
			"",
			strconv.Itoa(width),
			strconv.Itoa(height),
			strconv.Itoa(toPixels(d.X, width)),
			strconv.Itoa(toPixels(d.Y, height)),
			strconv.Itoa(toPixels(d.Width, width)),
			strconv.Itoa(toPixels(d.Height, height)),
			models.CategoryName(d.CategoryID()),
			strconv.FormatFloat(d.Confidence, 'f', -1, 32),
		})
	}
	return rows
}

func dimension(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func toPixels(fraction float64, size int) int {
	return int(math.Round(fraction * float64(size)))
}

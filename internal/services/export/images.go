package export

import (
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"camtrap/internal/logger"
	"camtrap/internal/models"
	"camtrap/internal/services/ai"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var ErrSameDirectory = errors.New("the export folder cannot be the same as the raw images folder")

// Criterion decides how one category takes part in image filtering.
type Criterion string

const (
	// Include selects images containing the category.
	Include Criterion = "include"
	// Intersect neither selects nor rejects.
	Intersect Criterion = "intersect"
	// Exclude rejects images containing the category, even when another category selects them.
	Exclude Criterion = "exclude"
)

func (c *Criterion) UnmarshalText(text []byte) error {
	switch v := Criterion(strings.ToLower(string(text))); v {
	case Include, Intersect, Exclude:
		*c = v
		return nil
	case "":
		*c = Intersect
		return nil
	}
	return errors.Errorf("invalid filter criterion %q", string(text))
}

// FilterCriteria selects which images are exported.
type FilterCriteria struct {
	Animals  Criterion `json:"animals"`
	Humans   Criterion `json:"humans"`
	Vehicles Criterion `json:"vehicles"`
	Empty    Criterion `json:"empty"`
}

// Match reports whether img passes the filter: at least one included category is
// present and no excluded one is. Failed images never match.
func (f FilterCriteria) Match(img models.ImageDetections) bool {
	if img.Failed() {
		return false
	}

	var present [4]bool
	present[models.CategoryEmpty] = len(img.Detections) == 0
	for _, d := range img.Detections {
		if id := d.CategoryID(); id > 0 && id < len(present) {
			present[id] = true
		}
	}

	criteria := [4]Criterion{
		models.CategoryEmpty:   f.Empty,
		models.CategoryAnimal:  f.Animals,
		models.CategoryHuman:   f.Humans,
		models.CategoryVehicle: f.Vehicles,
	}

	include, exclude := false, false
	for id, c := range criteria {
		if !present[id] {
			continue
		}
		switch c {
		case Include:
			include = true
		case Exclude:
			exclude = true
		}
	}
	return include && !exclude
}

// DrawCriteria selects which detections get a box.
type DrawCriteria struct {
	Animals  bool `json:"animals"`
	Humans   bool `json:"humans"`
	Vehicles bool `json:"vehicles"`
}

// ShouldDraw reports whether d is drawn.
func (c DrawCriteria) ShouldDraw(d models.Detection) bool {
	switch d.CategoryID() {
	case models.CategoryAnimal:
		return c.Animals
	case models.CategoryHuman:
		return c.Humans
	case models.CategoryVehicle:
		return c.Vehicles
	}
	return false
}

// BoxColor returns the RGB box color of a category.
func BoxColor(categoryID int) (r, g, b int) {
	switch categoryID {
	case models.CategoryAnimal:
		return 255, 255, 255
	case models.CategoryHuman:
		return 255, 0, 0
	case models.CategoryVehicle:
		return 0, 0, 255
	}
	return 0, 0, 0
}

// ImageSummary counts the outcome of an image export.
type ImageSummary struct {
	Matched int `json:"matched"`
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

// ImageExporter writes annotated copies of the matching images of a run,
// mirroring the directory structure below the run's base directory.
type ImageExporter struct {
	codec  ai.ImageCodec
	logger *logger.Logger
}

func NewImageExporter(codec ai.ImageCodec, logger *logger.Logger) *ImageExporter {
	return &ImageExporter{codec: codec, logger: logger}
}

// Export annotates and saves every image of result that matches filter. A file that
// cannot be read or written is logged and counted, the export continues.
func (e *ImageExporter) Export(ctx context.Context, result *models.BatchResult, outputDir string, filter FilterCriteria, draw DrawCriteria) (ImageSummary, error) {
	var summary ImageSummary
	if sameDirectory(outputDir, result.BaseDir) {
		return summary, ErrSameDirectory
	}

	var errs error
	for _, img := range result.Images {
		if err := ctx.Err(); err != nil {
			return summary, multierr.Append(errs, err)
		}
		if !filter.Match(img) {
			continue
		}
		summary.Matched++

		target := filepath.Join(outputDir, filepath.FromSlash(mirroredPath(img.File, result.BaseDir)))
		if err := e.exportOne(img, draw, target); err != nil {
			e.logger.Error("Image export of %s failed: %v", img.File, err)
			summary.Failed++
			errs = multierr.Append(errs, err)
			continue
		}
		summary.Written++
	}

	e.logger.Info("Exported %d of %d matching images to %s", summary.Written, summary.Matched, outputDir)
	return summary, errs
}

func (e *ImageExporter) exportOne(img models.ImageDetections, draw DrawCriteria, target string) error {
	src, err := e.codec.Decode(img.File)
	if err != nil {
		return err
	}
	annotated := Annotate(src, img.Detections, draw)
	return errors.Wrapf(e.codec.Save(annotated, target), "save %s", target)
}

// Annotate draws the selected detections onto a copy of src.
func Annotate(src image.Image, detections []models.Detection, draw DrawCriteria) image.Image {
	dc := gg.NewContextForImage(src)
	w, h := float64(dc.Width()), float64(dc.Height())
	lineWidth := math.Max(2, math.Min(w, h)/300)

	for _, d := range detections {
		if !draw.ShouldDraw(d) {
			continue
		}
		r, g, b := BoxColor(d.CategoryID())
		x, y := math.Floor(d.X*w), math.Floor(d.Y*h)
		bw, bh := math.Floor(d.Width*w), math.Floor(d.Height*h)

		dc.SetRGB255(r, g, b)
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(x, y, bw, bh)
		dc.Stroke()

		label := fmt.Sprintf("%s %.0f%%", models.CategoryName(d.CategoryID()), d.Confidence*100)
		tw, th := dc.MeasureString(label)
		ly := y - th - 4
		if ly < 0 {
			ly = y
		}
		dc.DrawRectangle(x, ly, tw+6, th+4)
		dc.Fill()
		if r+g+b > 382 {
			dc.SetRGB(0, 0, 0)
		} else {
			dc.SetRGB(1, 1, 1)
		}
		dc.DrawStringAnchored(label, x+3, ly+2, 0, 1)
	}
	return dc.Image()
}

func sameDirectory(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// mirroredPath is file relative to baseDir, or its base name when it lies outside.
func mirroredPath(file, baseDir string) string {
	rel := relativePath(file, baseDir)
	if rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
		return filepath.Base(file)
	}
	return rel
}

package ai

import (
	"math"

	"camtrap/internal/models"
)

// OverlapFunc measures the overlap of two boxes as intersection over union.
type OverlapFunc func(a, b models.Detection) float64

// Area returns the box area in squared image fractions.
func Area(d models.Detection) float64 {
	return d.Width * d.Height
}

// IOU computes intersection over union using the true extents of both boxes.
// Returns 0 when the union is empty.
func IOU(a, b models.Detection) float64 {
	left := math.Max(a.X, b.X)
	top := math.Max(a.Y, b.Y)
	right := math.Min(a.X+a.Width, b.X+b.Width)
	bottom := math.Min(a.Y+a.Height, b.Y+b.Height)

	intersection := math.Max(0, right-left) * math.Max(0, bottom-top)
	union := Area(a) + Area(b) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// LegacyIOU reproduces the overlap formula of older MegaDetector tooling, where the
// far corner is a's origin plus the smaller of the two sizes. Not a true overlap
// measure for boxes at different origins; kept for output compatibility only.
func LegacyIOU(a, b models.Detection) float64 {
	left := math.Max(a.X, b.X)
	top := math.Max(a.Y, b.Y)
	right := a.X + math.Min(a.Width, b.Width)
	bottom := a.Y + math.Min(a.Height, b.Height)

	intersection := math.Max(0, right-left) * math.Max(0, bottom-top)
	union := Area(a) + Area(b) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

package models

import "math"

// Detection is one bounding box in fractions of the source image dimensions.
// (X, Y) is the top-left corner.
type Detection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	ClassIndex int     `json:"class_index"`
	Confidence float64 `json:"confidence"`
}

// Area returns Width * Height.
func (d Detection) Area() float64 {
	return d.Width * d.Height
}

// Clipped returns a copy clamped so the box stays inside the unit square.
func (d Detection) Clipped() Detection {
	d.X = clamp01(d.X)
	d.Y = clamp01(d.Y)
	d.Width = math.Min(clamp01(d.Width), 1-d.X)
	d.Height = math.Min(clamp01(d.Height), 1-d.Y)
	return d
}

// CategoryID is the exported category id (0 is reserved for Empty).
func (d Detection) CategoryID() int {
	return d.ClassIndex + 1
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

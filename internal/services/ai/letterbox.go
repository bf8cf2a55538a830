package ai

import (
	"image"
	"image/color"
	"math"

	"camtrap/internal/models"

	"github.com/disintegration/imaging"
)

// LetterboxBackground is the padding gray used by YOLOv5 style models.
var LetterboxBackground = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// LetterboxParams records how a source image was fitted into the model input.
type LetterboxParams struct {
	Scale   float64
	PadX    int
	PadY    int
	Size    int
	SourceW int
	SourceH int
}

// ComputeLetterbox fits a w x h image into a size x size square preserving aspect ratio.
func ComputeLetterbox(w, h, size int) LetterboxParams {
	if w <= 0 || h <= 0 || size <= 0 {
		return LetterboxParams{Scale: 1, Size: size, SourceW: w, SourceH: h}
	}

	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	newW, newH := scaledDims(w, h, size, scale)

	return LetterboxParams{
		Scale:   scale,
		PadX:    (size - newW) / 2,
		PadY:    (size - newH) / 2,
		Size:    size,
		SourceW: w,
		SourceH: h,
	}
}

func scaledDims(w, h, size int, scale float64) (int, int) {
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	return clampInt(newW, 1, size), clampInt(newH, 1, size)
}

// ResizedSize returns the dimensions of the scaled image inside the canvas.
func (p LetterboxParams) ResizedSize() (int, int) {
	return scaledDims(p.SourceW, p.SourceH, p.Size, p.Scale)
}

// ToModel maps a box in source-image fractions to model-canvas fractions.
func (p LetterboxParams) ToModel(d models.Detection) models.Detection {
	s := float64(p.Size)
	d.X = (d.X*float64(p.SourceW)*p.Scale + float64(p.PadX)) / s
	d.Y = (d.Y*float64(p.SourceH)*p.Scale + float64(p.PadY)) / s
	d.Width = d.Width * float64(p.SourceW) * p.Scale / s
	d.Height = d.Height * float64(p.SourceH) * p.Scale / s
	return d
}

// ToSource maps a box in model-canvas fractions back to source-image fractions, clamped
// to the unit square.
func (p LetterboxParams) ToSource(d models.Detection) models.Detection {
	if p.SourceW <= 0 || p.SourceH <= 0 || p.Scale == 0 {
		return d.Clipped()
	}
	s := float64(p.Size)
	d.X = (d.X*s - float64(p.PadX)) / p.Scale / float64(p.SourceW)
	d.Y = (d.Y*s - float64(p.PadY)) / p.Scale / float64(p.SourceH)
	d.Width = d.Width * s / p.Scale / float64(p.SourceW)
	d.Height = d.Height * s / p.Scale / float64(p.SourceH)
	return d.Clipped()
}

// Letterbox resizes img and pastes it centered on a gray size x size canvas.
func Letterbox(img image.Image, size int) (*image.NRGBA, LetterboxParams) {
	bounds := img.Bounds()
	params := ComputeLetterbox(bounds.Dx(), bounds.Dy(), size)
	newW, newH := params.ResizedSize()

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(size, size, LetterboxBackground)
	canvas = imaging.Paste(canvas, resized, image.Pt(params.PadX, params.PadY))

	return canvas, params
}

// ImageToTensor converts an image to a [1,3,H,W] planar RGB tensor scaled to [0,1].
func ImageToTensor(img *image.NRGBA) Tensor {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			data[i] = float32(row[x*4]) / 255
			data[plane+i] = float32(row[x*4+1]) / 255
			data[2*plane+i] = float32(row[x*4+2]) / 255
		}
	}

	return Tensor{Data: data, Shape: []int64{1, 3, int64(h), int64(w)}}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package ai

import (
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageCodec decodes source images and encodes rendered ones.
type ImageCodec interface {
	Decode(path string) (image.Image, error)
	Encode(w io.Writer, img image.Image, format string) error
	Save(img image.Image, path string) error
}

// ImagingCodec implements ImageCodec with disintegration/imaging.
// Decoded images are rotated according to their EXIF orientation tag.
type ImagingCodec struct {
	JPEGQuality int
}

// NewImagingCodec returns a codec writing JPEG at quality 90.
func NewImagingCodec() *ImagingCodec {
	return &ImagingCodec{JPEGQuality: 90}
}

func (c *ImagingCodec) Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.Errorf("decode %s: image has no pixels", filepath.Base(path))
	}
	return img, nil
}

// Encode writes img in the given format ("jpg", "jpeg", "png", ...).
func (c *ImagingCodec) Encode(w io.Writer, img image.Image, format string) error {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return errors.Wrapf(err, "encode format %q", format)
	}
	return imaging.Encode(w, img, f, imaging.JPEGQuality(c.JPEGQuality))
}

// Save writes img to path, creating parent directories. The format follows the extension.
func (c *ImagingCodec) Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	return imaging.Save(img, path, imaging.JPEGQuality(c.JPEGQuality))
}

package ai

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestImagingCodec_SaveAndDecode(t *testing.T) {
	dir := t.TempDir()
	codec := NewImagingCodec()

	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, A: 255})

	path := filepath.Join(dir, "nested", "frame.png")
	if err := codec.Save(img, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	decoded, err := codec.Decode(path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Bounds().Dx() != 40 || decoded.Bounds().Dy() != 20 {
		t.Errorf("Decoded size = %v, want 40x20", decoded.Bounds())
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, img, "jpg"); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Expected encoded bytes")
	}
	if err := codec.Encode(&buf, img, "tiff2"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestImagingCodec_DecodeCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(path, []byte("not a jpeg"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := NewImagingCodec().Decode(path); err == nil {
		t.Error("Expected decode error for corrupt file")
	}
}

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camtrap/internal/models"

	"github.com/pkg/errors"
)

func sampleResult() *models.BatchResult {
	return &models.BatchResult{
		RunID:   "run-1",
		BaseDir: "/data/cam01",
		Images: []models.ImageDetections{
			models.NewFailedDetections("/data/cam01/broken.jpg", "unreadable image: EOF"),
			models.NewImageDetections("/data/cam01/empty.jpg", 640, 480, nil),
			models.NewImageDetections("/data/cam01/night/deer.jpg", 1000, 500, []models.Detection{
				{X: 0.1, Y: 0.2, Width: 0.25, Height: 0.5, ClassIndex: 0, Confidence: 0.875},
				{X: 0.5, Y: 0.5, Width: 0.1, Height: 0.1, ClassIndex: 1, Confidence: 0.5},
			}),
		},
	}
}

func TestDisplayPaths(t *testing.T) {
	result := sampleResult()

	rel := DisplayPaths(result.Images, result.BaseDir, false)
	if rel[2].File != "night/deer.jpg" {
		t.Errorf("relative path = %q", rel[2].File)
	}
	if result.Images[2].File != "/data/cam01/night/deer.jpg" {
		t.Error("DisplayPaths must not modify its input")
	}

	abs := DisplayPaths(result.Images, result.BaseDir, true)
	if abs[2].File != "/data/cam01/night/deer.jpg" {
		t.Errorf("absolute path = %q", abs[2].File)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sampleResult(), false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Invalid csv: %v", err)
	}

	want := [][]string{
		{"file", "error", "image_width", "image_height", "x", "y", "width", "height", "category", "confidence"},
		{"broken.jpg", "unreadable image: EOF", "", "", "", "", "", "", "", ""},
		{"empty.jpg", "", "", "", "", "", "", "", "Empty", ""},
		{"night/deer.jpg", "", "1000", "500", "100", "100", "250", "250", "Animal", "0.875"},
		{"night/deer.jpg", "", "1000", "500", "500", "250", "100", "50", "Human", "0.5"},
	}
	if len(rows) != len(want) {
		t.Fatalf("Got %d rows, want %d: %v", len(rows), len(want), rows)
	}
	for i := range want {
		if strings.Join(rows[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "JSON", sampleResult(), false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var doc struct {
		Images []struct {
			File        string  `json:"file"`
			Error       *string `json:"error"`
			ImageWidth  *int    `json:"image_width"`
			ImageHeight *int    `json:"image_height"`
			Detections  []struct {
				X        float64 `json:"x"`
				Category int     `json:"category"`
			} `json:"detections"`
		} `json:"images"`
		Categories []models.Category `json:"categories"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Invalid json: %v", err)
	}

	if len(doc.Images) != 3 || len(doc.Categories) != 4 {
		t.Fatalf("Unexpected document %+v", doc)
	}
	if doc.Images[0].Error == nil || doc.Images[0].ImageWidth != nil {
		t.Errorf("Failed image should carry its error and no size: %+v", doc.Images[0])
	}
	if doc.Images[1].Error != nil || doc.Images[1].Detections == nil || len(doc.Images[1].Detections) != 0 {
		t.Errorf("Empty image should have an empty detection list: %+v", doc.Images[1])
	}
	dets := doc.Images[2].Detections
	if dets[0].Category != models.CategoryAnimal || dets[1].Category != models.CategoryHuman || dets[0].X != 0.1 {
		t.Errorf("Unexpected detections %+v", dets)
	}
	if doc.Categories[0].Name != "Empty" || doc.Categories[3].ID != 3 {
		t.Errorf("Unexpected categories %+v", doc.Categories)
	}

	if strings.Contains(buf.String(), `"error": null`) {
		t.Error("error key should be omitted when there is no error")
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", sampleResult(), false)
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "results.csv")

	if err := WriteFile(path, FormatFromPath(path), sampleResult(), true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	if !strings.Contains(string(data), "/data/cam01/night/deer.jpg") {
		t.Errorf("Expected absolute paths in export:\n%s", data)
	}

	bad := filepath.Join(dir, "results.txt")
	if err := WriteFile(bad, FormatFromPath(bad), sampleResult(), false); err == nil {
		t.Error("Expected error for unknown extension")
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("Failed export should not leave a file behind")
	}
}

func TestReadJSON_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	original := sampleResult()
	if err := Write(&buf, FormatJSON, original, false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	images, err := ReadJSON(&buf, original.BaseDir)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if len(images) != len(original.Images) {
		t.Fatalf("Got %d images, want %d", len(images), len(original.Images))
	}
	for i, img := range images {
		want := original.Images[i]
		if img.File != filepath.FromSlash(want.File) || img.Failed() != want.Failed() || len(img.Detections) != len(want.Detections) {
			t.Errorf("image %d = %+v, want %+v", i, img, want)
		}
	}
	if images[2].Detections[1] != original.Images[2].Detections[1] {
		t.Errorf("Detection = %+v, want %+v", images[2].Detections[1], original.Images[2].Detections[1])
	}
}

func TestReadJSON_RejectsUnknownCategory(t *testing.T) {
	doc := `{"images":[{"file":"a.jpg","image_width":10,"image_height":10,"detections":[{"category":0}]}]}`
	if _, err := ReadJSON(strings.NewReader(doc), ""); err == nil {
		t.Error("Expected error for category 0 on a detection")
	}
}

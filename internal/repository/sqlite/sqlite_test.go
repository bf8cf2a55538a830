package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"camtrap/internal/models"
	"camtrap/internal/repository"
	"camtrap/internal/repository/sqlite"
)

var (
	_ repository.RunRepository       = (*sqlite.RunRepository)(nil)
	_ repository.ImageRepository     = (*sqlite.ImageRepository)(nil)
	_ repository.DetectionRepository = (*sqlite.DetectionRepository)(nil)
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertRun(t *testing.T, runs *sqlite.RunRepository, id string, started time.Time) {
	t.Helper()
	err := runs.Insert(&models.Run{
		ID:                  id,
		BaseDir:             "/data/cam01",
		Recursive:           true,
		ConfidenceThreshold: 0.2,
		IOUThreshold:        0.45,
		Status:              models.RunStatusRunning,
		StartedAt:           started,
	})
	if err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_CreatesFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "camtrap.db")

	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrationIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		db, err := sqlite.New(dbPath)
		if err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		db.Close()
	}
}

// ========================================
// Run Repository Tests
// ========================================

func TestRunRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	runs := sqlite.NewRunRepository(db)

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	insertRun(t, runs, "run-a", started)

	if err := runs.SetTotal("run-a", 12); err != nil {
		t.Fatalf("SetTotal failed: %v", err)
	}
	finished := started.Add(time.Minute)
	if err := runs.Finish("run-a", models.RunStatusCompleted, finished); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	run, err := runs.GetByID("run-a")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if run == nil {
		t.Fatal("Expected run")
	}
	if run.Total != 12 || run.Status != models.RunStatusCompleted || !run.Recursive {
		t.Errorf("Unexpected run %+v", run)
	}
	if run.FinishedAt == nil || !run.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", run.FinishedAt, finished)
	}

	missing, err := runs.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil for missing run, got %v, %v", missing, err)
	}
	if err := runs.Finish("nope", models.RunStatusFailed, finished); err == nil {
		t.Error("Expected error finishing a missing run")
	}
}

func TestRunRepository_LatestAndList(t *testing.T) {
	db := newTestDB(t)
	runs := sqlite.NewRunRepository(db)

	latest, err := runs.GetLatest()
	if err != nil || latest != nil {
		t.Fatalf("Expected no latest run, got %v, %v", latest, err)
	}

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	insertRun(t, runs, "old", base)
	insertRun(t, runs, "new", base.Add(time.Hour))

	latest, err = runs.GetLatest()
	if err != nil || latest == nil || latest.ID != "new" {
		t.Errorf("Expected latest run 'new', got %v, %v", latest, err)
	}

	all, err := runs.GetAll(0)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "new" {
		t.Errorf("Unexpected runs %+v", all)
	}

	limited, _ := runs.GetAll(1)
	if len(limited) != 1 {
		t.Errorf("Expected 1 run with limit, got %d", len(limited))
	}
}

// ========================================
// Image and Detection Repository Tests
// ========================================

func TestImageAndDetectionRepositories(t *testing.T) {
	db := newTestDB(t)
	runs := sqlite.NewRunRepository(db)
	images := sqlite.NewImageRepository(db)
	detections := sqlite.NewDetectionRepository(db)

	insertRun(t, runs, "run-a", time.Now())

	width, height := 1920, 1080
	okID, err := images.Insert(&models.ImageRecord{RunID: "run-a", Position: 1, File: "/data/b.jpg", Width: &width, Height: &height})
	if err != nil {
		t.Fatalf("Insert image failed: %v", err)
	}
	msg := "unreadable image: EOF"
	if _, err := images.Insert(&models.ImageRecord{RunID: "run-a", Position: 0, File: "/data/a.jpg", Error: &msg}); err != nil {
		t.Fatalf("Insert failed image: %v", err)
	}

	err = detections.InsertBatch([]models.DetectionRecord{
		{ImageID: okID, Detection: models.Detection{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4, ClassIndex: 0, Confidence: 0.9}},
		{ImageID: okID, Detection: models.Detection{X: 0.5, Y: 0.5, Width: 0.1, Height: 0.1, ClassIndex: 1, Confidence: 0.6}},
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if _, err := detections.Insert(&models.DetectionRecord{ImageID: okID, Detection: models.Detection{ClassIndex: 0, Confidence: 0.3}}); err != nil {
		t.Fatalf("Insert detection failed: %v", err)
	}

	stored, err := images.GetByRunID("run-a")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 images, got %d", len(stored))
	}
	if stored[0].Position != 0 || stored[0].Error == nil || *stored[0].Error != msg || stored[0].Width != nil {
		t.Errorf("Unexpected failed row %+v", stored[0])
	}
	if stored[1].Width == nil || *stored[1].Width != 1920 || stored[1].Error != nil {
		t.Errorf("Unexpected ok row %+v", stored[1])
	}

	dets, err := detections.GetByImageID(okID)
	if err != nil {
		t.Fatalf("GetByImageID failed: %v", err)
	}
	if len(dets) != 3 || dets[0].Confidence != 0.9 || dets[1].ClassIndex != 1 {
		t.Errorf("Unexpected detections %+v", dets)
	}

	counts, err := detections.CountByClass("run-a")
	if err != nil {
		t.Fatalf("CountByClass failed: %v", err)
	}
	if counts[0] != 2 || counts[1] != 1 {
		t.Errorf("Unexpected class counts %v", counts)
	}

	count, _ := images.CountByRunID("run-a")
	if count != 2 {
		t.Errorf("CountByRunID = %d, want 2", count)
	}

	if err := runs.Delete("run-a"); err != nil {
		t.Fatalf("Delete run failed: %v", err)
	}
	count, _ = images.CountByRunID("run-a")
	if count != 0 {
		t.Errorf("Images should cascade with their run, %d left", count)
	}
	dets, _ = detections.GetByImageID(okID)
	if len(dets) != 0 {
		t.Errorf("Detections should cascade with their image, %d left", len(dets))
	}
}

func TestImageRepository_RejectsUnknownRun(t *testing.T) {
	db := newTestDB(t)
	images := sqlite.NewImageRepository(db)

	if _, err := images.Insert(&models.ImageRecord{RunID: "ghost", File: "a.jpg"}); err == nil {
		t.Error("Expected foreign key violation for unknown run")
	}
}

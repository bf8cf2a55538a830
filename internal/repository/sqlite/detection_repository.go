package sqlite

import (
	"fmt"

	"camtrap/internal/models"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Insert adds a new detection record to the database.
func (r *DetectionRepository) Insert(det *models.DetectionRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO detections (image_id, class_index, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, det.ImageID, det.ClassIndex, det.X, det.Y, det.Width, det.Height, det.Confidence)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []models.DetectionRecord) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detections (image_id, class_index, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.ImageID, det.ClassIndex, det.X, det.Y, det.Width, det.Height, det.Confidence); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetByImageID retrieves all detections for an image in insertion order.
func (r *DetectionRepository) GetByImageID(imageID int64) ([]models.DetectionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, image_id, class_index, x, y, width, height, confidence
		FROM detections WHERE image_id = ? ORDER BY id
	`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []models.DetectionRecord
	for rows.Next() {
		var det models.DetectionRecord
		if err := rows.Scan(&det.ID, &det.ImageID, &det.ClassIndex, &det.X, &det.Y, &det.Width, &det.Height, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// CountByClass returns the number of detections per class index for a run.
func (r *DetectionRepository) CountByClass(runID string) (map[int]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT d.class_index, COUNT(*)
		FROM detections d
		JOIN images i ON i.id = d.image_id
		WHERE i.run_id = ?
		GROUP BY d.class_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count detections: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var class, count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("failed to scan detection count: %w", err)
		}
		counts[class] = count
	}
	return counts, rows.Err()
}

// DeleteByImageID removes all detections for a specific image.
func (r *DetectionRepository) DeleteByImageID(imageID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE image_id = ?`, imageID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}

package sqlite

import (
	"database/sql"
	"fmt"

	"camtrap/internal/models"
)

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Insert adds a per-file result row. A row already stored at the same run position is replaced.
func (r *ImageRepository) Insert(img *models.ImageRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT OR REPLACE INTO images (run_id, position, file, width, height, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, img.RunID, img.Position, img.File, nullInt(img.Width), nullInt(img.Height), nullString(img.Error))
	if err != nil {
		return 0, fmt.Errorf("failed to insert image: %w", err)
	}

	return result.LastInsertId()
}

// GetByRunID retrieves all rows of a run in enumeration order.
func (r *ImageRepository) GetByRunID(runID string) ([]models.ImageRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, run_id, position, file, width, height, error
		FROM images WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []models.ImageRecord
	for rows.Next() {
		var img models.ImageRecord
		var width, height sql.NullInt64
		var errMsg sql.NullString
		if err := rows.Scan(&img.ID, &img.RunID, &img.Position, &img.File, &width, &height, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		img.Width = intPtr(width)
		img.Height = intPtr(height)
		if errMsg.Valid {
			msg := errMsg.String
			img.Error = &msg
		}
		images = append(images, img)
	}

	return images, rows.Err()
}

// CountByRunID returns the number of stored rows for a run.
func (r *ImageRepository) CountByRunID(runID string) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM images WHERE run_id = ?`, runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// DeleteByRunID removes all rows of a run and their detections.
func (r *ImageRepository) DeleteByRunID(runID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM images WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

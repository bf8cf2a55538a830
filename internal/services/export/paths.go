package export

import (
	"path/filepath"

	"camtrap/internal/models"
)

// DisplayPaths returns copies of images whose File is relative to baseDir.
// Files outside baseDir, or all files when absolute is set, keep their path.
func DisplayPaths(images []models.ImageDetections, baseDir string, absolute bool) []models.ImageDetections {
	out := make([]models.ImageDetections, len(images))
	for i, img := range images {
		if absolute || baseDir == "" {
			out[i] = img
			continue
		}
		out[i] = img.WithFile(relativePath(img.File, baseDir))
	}
	return out
}

func relativePath(file, baseDir string) string {
	rel, err := filepath.Rel(baseDir, file)
	if err != nil {
		return file
	}
	return filepath.ToSlash(rel)
}

package export

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"camtrap/internal/models"

	"github.com/pkg/errors"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ContentType returns the MIME type of a supported format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	}
	return "application/octet-stream"
}

// Write renders result in the given format. Paths are relative to the run's base
// directory unless absolute is set.
func Write(w io.Writer, format string, result *models.BatchResult, absolute bool) error {
	images := DisplayPaths(result.Images, result.BaseDir, absolute)

	switch strings.ToLower(format) {
	case FormatCSV:
		return WriteCSV(w, images)
	case FormatJSON:
		return WriteJSON(w, images)
	}
	return errors.Wrapf(ErrUnknownFormat, "%q", format)
}

// WriteFile renders result into path, creating parent directories.
// The file is removed again if rendering fails.
func WriteFile(path, format string, result *models.BatchResult, absolute bool) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create export directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create export file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	return Write(f, format, result, absolute)
}

// FormatFromPath guesses the export format from a file extension.
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

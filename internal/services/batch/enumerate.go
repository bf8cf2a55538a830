package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions lists the accepted image extensions, lower case without the dot.
var Extensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// IsImage reports whether path has an accepted extension, ignoring case.
func IsImage(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return Extensions[strings.ToLower(ext)]
}

// Enumerate lists candidate images under root, sorted lexicographically. Without
// recursive only the files directly inside root are returned. Unreadable
// subdirectories are skipped. A symlinked root is followed, and symlinked files
// are kept when they point to regular files. Returned paths keep root as prefix.
func Enumerate(root string, recursive bool) ([]string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == resolved {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != resolved && !recursive {
				return fs.SkipDir
			}
			return nil
		}

		if !IsImage(path) || !isRegularFile(path, d) {
			return nil
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.Join(root, rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

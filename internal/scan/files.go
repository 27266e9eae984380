package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ListImages walks root and returns every regular file with one of the
// given extensions (lowercase, dot-prefixed) and at least minSize bytes.
// Hidden directories are skipped entirely. Results come back in walk
// order, which is deterministic for a given tree.
func ListImages(root string, extensions []string, minSize int64) ([]string, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() < minSize {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk %s: %w", root, err)
	}

	return files, nil
}

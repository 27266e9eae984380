package organize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DateDirectory returns the target directory for a capture time:
// root/YYYY/MM-MonthName, e.g. root/2023/07-July.
func DateDirectory(root string, t time.Time) string {
	year := fmt.Sprintf("%04d", t.Year())
	month := fmt.Sprintf("%02d-%s", int(t.Month()), t.Month().String())
	return filepath.Join(root, year, month)
}

// UniqueDestination returns dir/name, or the first dir/base_N.ext that does
// not exist yet when the plain name is taken. The original file keeps its
// name whenever possible.
func UniqueDestination(dir, name string) string {
	dest := filepath.Join(dir, name)
	if !exists(dest) {
		return dest
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ext))
		if !exists(dest) {
			return dest
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

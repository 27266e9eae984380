// Package organize moves photo files into structured directory trees, by
// capture date or by the people in them.
package organize

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// TakenAt determines when a photo was captured. EXIF DateTimeOriginal wins;
// photos with no usable EXIF fall back to the file modification time, and
// unreadable files to the current time so they still land somewhere.
func TakenAt(path string) time.Time {
	if t, ok := exifTime(path); ok {
		return t
	}
	if info, err := os.Stat(path); err == nil {
		return info.ModTime()
	}
	return time.Now()
}

func exifTime(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

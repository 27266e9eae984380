// Package dedupe finds duplicate photos, either byte-identical copies or
// visually near-identical variants (recompressed, resized, lightly edited).
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Group is a set of files considered duplicates of each other. Paths keep
// the input order, so the first member is the natural keeper.
type Group struct {
	Paths []string `json:"paths"`
	Size  int64    `json:"size,omitempty"`
}

// FindExact groups byte-identical files by content hash. Files are first
// bucketed by size so unique-sized files are never read at all; groups come
// back ordered by their first member's position in the input.
func FindExact(ctx context.Context, files []string) ([]Group, error) {
	bySize := make(map[int64][]string)
	order := make(map[string]int, len(files))
	for i, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("could not stat %s: %w", path, err)
		}
		bySize[info.Size()] = append(bySize[info.Size()], path)
		order[path] = i
	}

	type bucket struct {
		first int
		size  int64
		paths []string
	}
	var buckets []bucket

	for size, candidates := range bySize {
		if len(candidates) < 2 {
			continue
		}

		byHash := make(map[string][]string)
		for _, path := range candidates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			sum, err := hashFile(path)
			if err != nil {
				return nil, err
			}
			byHash[sum] = append(byHash[sum], path)
		}

		for _, paths := range byHash {
			if len(paths) < 2 {
				continue
			}
			buckets = append(buckets, bucket{first: order[paths[0]], size: size, paths: paths})
		}
	}

	// map iteration is random; restore input order
	groups := make([]Group, 0, len(buckets))
	for len(buckets) > 0 {
		best := 0
		for i := 1; i < len(buckets); i++ {
			if buckets[i].first < buckets[best].first {
				best = i
			}
		}
		groups = append(groups, Group{Paths: buckets[best].paths, Size: buckets[best].size})
		buckets = append(buckets[:best], buckets[best+1:]...)
	}

	return groups, nil
}

// hashFile streams the file through SHA-256 so large photos never load
// into memory whole.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("could not hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

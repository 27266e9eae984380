package organize

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"facesort/internal/faces"
	"facesort/internal/scan"
)

// Transfer selects how files reach their destination.
type Transfer string

const (
	TransferMove Transfer = "move"
	TransferCopy Transfer = "copy"
)

// Options tune an organizing pass.
type Options struct {
	Transfer Transfer
	DryRun   bool
	// DateNested nests YYYY/MM-MonthName under each person directory.
	DateNested bool
	Events     chan<- scan.Event
}

// Stats summarizes an organizing pass. Errors holds per-file failures; a
// failing file never aborts the rest.
type Stats struct {
	Organized int
	Failed    int
	PerPerson map[string]int
	Errors    []error
}

// Organizer places photos into date or person directory trees.
type Organizer struct {
	log *logrus.Logger
}

func New(log *logrus.Logger) *Organizer {
	return &Organizer{log: log}
}

// ByDate places each file under destRoot/YYYY/MM-MonthName according to its
// capture time. Name collisions get a numeric suffix instead of overwriting.
func (o *Organizer) ByDate(ctx context.Context, files []string, destRoot string, opts Options) (*Stats, error) {
	stats := &Stats{}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		dir := DateDirectory(destRoot, TakenAt(path))
		if err := o.place(path, dir, opts); err != nil {
			o.log.WithError(err).Warnf("could not organize %s", path)
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
		} else {
			stats.Organized++
		}

		emitProgress(opts.Events, i+1, len(files), path)
	}

	return stats, nil
}

// ByPerson copies each photo into destRoot/<person>/ for every named person
// in it. Copying is deliberate: a photo of two people belongs in both
// directories, so the source stays put.
func (o *Organizer) ByPerson(ctx context.Context, clusters []faces.Cluster, destRoot string, opts Options) (*Stats, error) {
	stats := &Stats{PerPerson: make(map[string]int)}

	// person -> unique source files, deterministic order for stable runs
	perPerson := make(map[string]map[string]bool)
	for _, cluster := range clusters {
		if cluster.PersonName == "" {
			continue
		}
		name := faces.SanitizePersonName(cluster.PersonName)
		if perPerson[name] == nil {
			perPerson[name] = make(map[string]bool)
		}
		for _, obs := range cluster.Members {
			perPerson[name][obs.SourceImage] = true
		}
	}

	names := make([]string, 0, len(perPerson))
	for name := range perPerson {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		total += len(perPerson[name])
	}

	copyOpts := opts
	copyOpts.Transfer = TransferCopy

	done := 0
	for _, name := range names {
		paths := make([]string, 0, len(perPerson[name]))
		for path := range perPerson[name] {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			dir := filepath.Join(destRoot, name)
			if opts.DateNested {
				dir = DateDirectory(dir, TakenAt(path))
			}

			if err := o.place(path, dir, copyOpts); err != nil {
				o.log.WithError(err).Warnf("could not organize %s for %s", path, name)
				stats.Failed++
				stats.Errors = append(stats.Errors, err)
			} else {
				stats.Organized++
				stats.PerPerson[name]++
			}

			done++
			emitProgress(opts.Events, done, total, path)
		}
	}

	return stats, nil
}

// place puts one file into dir using the configured transfer.
func (o *Organizer) place(path, dir string, opts Options) error {
	dest := UniqueDestination(dir, filepath.Base(path))
	if opts.DryRun {
		o.log.Infof("would %s %s -> %s", transferVerb(opts.Transfer), path, dest)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create %s: %w", dir, err)
	}

	switch opts.Transfer {
	case TransferCopy:
		return copyFile(path, dest)
	default:
		return moveFile(path, dest)
	}
}

func transferVerb(t Transfer) string {
	if t == TransferCopy {
		return "copy"
	}
	return "move"
}

func emitProgress(ch chan<- scan.Event, current, total int, path string) {
	if ch == nil {
		return
	}
	select {
	case ch <- scan.Event{Phase: scan.PhaseOrganizing, Current: current, Total: total, Path: path}:
	default:
	}
}

// moveFile renames when possible and falls back to copy-and-delete across
// filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("could not remove %s after copy: %w", src, err)
	}
	return nil
}

// copyFile copies src to dest preserving the modification time, so a later
// date pass still sees the original timestamp.
func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("could not stat %s: %w", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("could not create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("could not copy to %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", dest, err)
	}

	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("could not preserve times on %s: %w", dest, err)
	}
	return nil
}

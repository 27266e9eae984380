package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"facesort/internal/config"
	"facesort/internal/encodings"
	"facesort/internal/faces"
)

// Pipeline runs the full scan: list files, extract faces, cluster. Both the
// CLI and the web UI drive the same pipeline.
type Pipeline struct {
	cfg    *config.Config
	source Source
	cache  *encodings.Cache
	log    *logrus.Logger
}

func NewPipeline(cfg *config.Config, source Source, cache *encodings.Cache, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		source: source,
		cache:  cache,
		log:    log,
	}
}

// Run scans sourceDir and returns a session holding the clustered result.
// A zero tolerance uses the configured default.
func (p *Pipeline) Run(ctx context.Context, sourceDir string, tolerance float64, events chan<- Event) (*faces.Session, Stats, error) {
	if tolerance == 0 {
		tolerance = p.cfg.Scan.Tolerance
	}
	if !faces.ValidTolerance(tolerance) {
		return nil, Stats{}, fmt.Errorf("tolerance %.2f out of range [%.1f, %.1f]",
			tolerance, faces.MinTolerance, faces.MaxTolerance)
	}

	files, err := ListImages(sourceDir, p.cfg.Scan.Extensions, p.cfg.Scan.MinFileSize)
	if err != nil {
		return nil, Stats{}, err
	}
	p.log.Infof("found %d image files in %s", len(files), sourceDir)

	extractor := NewExtractor(p.source, p.cache, p.log)
	observations, stats, err := extractor.Extract(ctx, files, Options{
		Workers:     p.cfg.Scan.Workers,
		FileTimeout: p.cfg.Scan.FileTimeout,
		Events:      events,
	})
	if err != nil {
		return nil, stats, err
	}
	p.log.Infof("extracted %d faces from %d files (%d cached, %d failed)",
		len(observations), stats.Scanned, stats.FromCache, stats.Failed)

	emit(events, Event{Phase: PhaseClustering, Total: len(observations)})
	clusters, err := faces.ClusterObservations(ctx, observations, tolerance)
	if err != nil {
		return nil, stats, err
	}
	p.log.Infof("grouped %d faces into %d unique people", len(observations), len(clusters))

	session := &faces.Session{
		Source:    sourceDir,
		Tolerance: tolerance,
		Clusters:  clusters,
		CreatedAt: time.Now(),
	}
	return session, stats, nil
}

package scan

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"facesort/internal/encodings"
	"facesort/internal/faces"
)

// Source produces face observations for a single image. Implemented by
// detect.Client; tests substitute a stub.
type Source interface {
	DetectFaces(ctx context.Context, imagePath string, imageData []byte) ([]faces.Observation, error)
}

// Options tune an extraction pass.
type Options struct {
	// Workers bounds concurrent embedding requests. Zero means 1.
	Workers int
	// FileTimeout bounds a single file, detection included. Zero disables it.
	FileTimeout time.Duration
	// Events receives progress updates when non-nil.
	Events chan<- Event
}

// Stats summarizes an extraction pass.
type Stats struct {
	Scanned   int
	FromCache int
	Failed    int
}

// Extractor runs face extraction over a set of files, consulting the
// encoding cache before calling the embedding service.
type Extractor struct {
	source Source
	cache  *encodings.Cache
	log    *logrus.Logger
}

// NewExtractor wires an extractor. The cache may be nil, in which case
// every file goes to the source.
func NewExtractor(source Source, cache *encodings.Cache, log *logrus.Logger) *Extractor {
	return &Extractor{
		source: source,
		cache:  cache,
		log:    log,
	}
}

// fileResult keeps per-file output so the final slice preserves input order
// regardless of worker scheduling.
type fileResult struct {
	observations []faces.Observation
	fromCache    bool
	err          error
}

// Extract computes observations for every file, in input order. A failing
// file is logged and counted, not fatal; cancellation stops scheduling new
// files and returns ctx.Err alongside the work finished so far.
func (e *Extractor) Extract(ctx context.Context, files []string, opts Options) ([]faces.Observation, Stats, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]fileResult, len(files))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	var done int64
	var mu sync.Mutex

	scheduled := 0
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		scheduled++

		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				results[index] = fileResult{err: ctx.Err()}
				return
			}

			obs, cached, err := e.extractOne(ctx, path, opts.FileTimeout)
			results[index] = fileResult{observations: obs, fromCache: cached, err: err}

			mu.Lock()
			done++
			current := int(done)
			mu.Unlock()

			emit(opts.Events, Event{
				Phase:   PhaseExtracting,
				Current: current,
				Total:   len(files),
				Path:    path,
			})
		}(i, path)
	}

	wg.Wait()

	var observations []faces.Observation
	var stats Stats
	for i, res := range results[:scheduled] {
		if res.err != nil {
			if ctx.Err() == nil || res.err != ctx.Err() {
				e.log.WithError(res.err).Warnf("skipping %s", files[i])
			}
			stats.Failed++
			continue
		}
		stats.Scanned++
		if res.fromCache {
			stats.FromCache++
		}
		observations = append(observations, res.observations...)
	}

	if e.cache != nil {
		if err := e.cache.Persist(); err != nil {
			e.log.WithError(err).Warn("could not persist encoding cache")
		}
	}

	return observations, stats, ctx.Err()
}

// extractOne resolves a single file through the cache, falling back to the
// embedding service on a miss. Empty detections are cached too, so faceless
// photos cost one request ever.
func (e *Extractor) extractOne(ctx context.Context, path string, timeout time.Duration) ([]faces.Observation, bool, error) {
	var identity encodings.Identity
	if e.cache != nil {
		var err error
		identity, err = encodings.IdentityFor(path)
		if err != nil {
			return nil, false, fmt.Errorf("could not stat %s: %w", path, err)
		}
		if embeddings, boxes, ok := e.cache.Get(identity); ok {
			return encodings.Join(path, embeddings, boxes), true, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("could not read %s: %w", path, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	observations, err := e.source.DetectFaces(ctx, path, data)
	if err != nil {
		return nil, false, fmt.Errorf("could not detect faces in %s: %w", path, err)
	}

	if e.cache != nil {
		embeddings, boxes := encodings.Split(observations)
		e.cache.Put(identity, embeddings, boxes)
	}

	return observations, false, nil
}

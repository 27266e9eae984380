package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facesort/internal/config"
	"facesort/internal/detect"
	"facesort/internal/encodings"
	"facesort/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan [source-dir]",
	Short: "Scan photos and group the faces into unique people",
	Long: `Scan walks the source directory, extracts face embeddings through the
embedding service (reusing cached results for unchanged files), groups the
faces into clusters of unique people and saves the result as the current
session. Use "facesort name" afterwards to attach names to clusters.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Float64("tolerance", 0, "Face distance tolerance (0 = configured default)")
	scanCmd.Flags().Int("workers", 0, "Extraction workers (0 = configured default)")
}

// openCache loads the encoding cache and evicts stale entries. Failures
// degrade to an empty cache, they never stop a scan.
func openCache(cfg *config.Config, log *logrus.Logger) *encodings.Cache {
	cache, err := encodings.Open(cfg.Paths.CacheFile())
	if err != nil {
		log.WithError(err).Warn("could not load encoding cache, starting fresh")
	}
	if removed := cache.EvictOlderThan(cfg.Cache.MaxAge); removed > 0 {
		log.Infof("evicted %d stale cache entries", removed)
	}
	return cache
}

// drainProgress renders scan events as a progress bar. Returns a channel to
// close when the scan is done and one that closes when draining finishes.
func drainProgress(description string) (chan scan.Event, chan struct{}) {
	events := make(chan scan.Event, 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var bar *progressbar.ProgressBar
		for ev := range events {
			if ev.Phase != scan.PhaseExtracting {
				continue
			}
			if bar == nil {
				bar = progressbar.NewOptions(ev.Total,
					progressbar.OptionSetDescription(description),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionFullWidth(),
					progressbar.OptionSetTheme(progressbar.Theme{
						Saucer:        "=",
						SaucerHead:    ">",
						SaucerPadding: " ",
						BarStart:      "[",
						BarEnd:        "]",
					}),
				)
			}
			_ = bar.Set(ev.Current)
		}
		if bar != nil {
			_ = bar.Finish()
			fmt.Println()
		}
	}()

	return events, done
}

func runScan(cmd *cobra.Command, args []string) error {
	source := args[0]
	if err := requireDir(source); err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	if workers := mustGetInt(cmd, "workers"); workers > 0 {
		cfg.Scan.Workers = workers
	}
	tolerance := mustGetFloat64(cmd, "tolerance")

	ctx, cancel := signalContext()
	defer cancel()

	cache := openCache(cfg, log)
	client := detect.NewClient(cfg.Embedding.URL)
	pipeline := scan.NewPipeline(cfg, client, cache, log)

	events, drained := drainProgress("Scanning photos")
	session, stats, err := pipeline.Run(ctx, source, tolerance, events)
	close(events)
	<-drained
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := session.Save(cfg.Paths.SessionFile()); err != nil {
		return fmt.Errorf("could not save session: %w", err)
	}

	fmt.Printf("\nScanned %d photos (%d from cache, %d failed)\n",
		stats.Scanned, stats.FromCache, stats.Failed)
	fmt.Printf("Found %d faces in %d unique people\n\n",
		len(session.Observations()), len(session.Clusters))

	for i, cluster := range session.Clusters {
		sample := filepath.Base(cluster.Representative().SourceImage)
		fmt.Printf("  Cluster %d: %d faces (e.g. %s)\n", i, cluster.Size(), sample)
	}
	if len(session.Clusters) > 0 {
		fmt.Println("\nUse 'facesort name <cluster> <person>' to name a cluster.")
	}

	return nil
}

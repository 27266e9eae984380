package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"facesort/internal/detect"
	"facesort/internal/faces"
	"facesort/internal/organize"
	"facesort/internal/scan"
)

var sortCmd = &cobra.Command{
	Use:   "sort [source-dir] [destination-dir]",
	Short: "Sort photos into folders per person",
	Long: `Sort matches every face in the source photos against the named people
registry and copies each photo into destination/<Person>/ for every person
recognized in it. A photo of several people lands in several folders, so
the originals are always copied, never moved.`,
	Args: cobra.ExactArgs(2),
	RunE: runSort,
}

func init() {
	rootCmd.AddCommand(sortCmd)

	sortCmd.Flags().Bool("by-date", false, "Nest YYYY/MM-MonthName under each person folder")
	sortCmd.Flags().Float64("tolerance", 0, "Face distance tolerance (0 = configured default)")
	sortCmd.Flags().String("policy", "", "Match policy: first or nearest (default from config)")
	sortCmd.Flags().Int("workers", 0, "Extraction workers (0 = configured default)")
	sortCmd.Flags().Bool("dry-run", false, "Preview changes without touching any file")
}

func runSort(cmd *cobra.Command, args []string) error {
	source, dest := args[0], args[1]
	if err := requireDir(source); err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("destination directory %s is not usable: %w", dest, err)
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	tolerance := mustGetFloat64(cmd, "tolerance")
	if tolerance == 0 {
		tolerance = cfg.Scan.Tolerance
	}
	if !faces.ValidTolerance(tolerance) {
		return fmt.Errorf("tolerance %.2f out of range [%.1f, %.1f]",
			tolerance, faces.MinTolerance, faces.MaxTolerance)
	}

	policy := cfg.MatchPolicy()
	if flagPolicy := mustGetString(cmd, "policy"); flagPolicy != "" {
		policy, err = faces.ParseMatchPolicy(flagPolicy)
		if err != nil {
			return err
		}
	}
	if workers := mustGetInt(cmd, "workers"); workers > 0 {
		cfg.Scan.Workers = workers
	}
	dryRun := mustGetBool(cmd, "dry-run")

	registry, err := faces.LoadRegistry(cfg.Paths.PeopleFile())
	if err != nil {
		return fmt.Errorf("could not load people registry: %w", err)
	}
	if registry.Len() == 0 {
		return fmt.Errorf("no people named yet, run 'facesort scan' and 'facesort name' first")
	}

	ctx, cancel := signalContext()
	defer cancel()

	files, err := scan.ListImages(source, cfg.Scan.Extensions, cfg.Scan.MinFileSize)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d photos, matching against %d people\n", len(files), registry.Len())
	if dryRun {
		fmt.Println("Mode: DRY RUN (no changes will be applied)")
	}

	cache := openCache(cfg, log)
	client := detect.NewClient(cfg.Embedding.URL)
	extractor := scan.NewExtractor(client, cache, log)

	events, drained := drainProgress("Matching faces")
	observations, stats, err := extractor.Extract(ctx, files, scan.Options{
		Workers:     cfg.Scan.Workers,
		FileTimeout: cfg.Scan.FileTimeout,
		Events:      events,
	})
	close(events)
	<-drained
	if err != nil {
		return fmt.Errorf("face extraction failed: %w", err)
	}

	// union of matched people per photo
	perPerson := make(map[string][]faces.Observation)
	for _, obs := range observations {
		name, ok, err := registry.Match(obs.Embedding, tolerance, policy)
		if err != nil {
			log.WithError(err).Warnf("skipping face from %s", obs.SourceImage)
			continue
		}
		if ok {
			perPerson[name] = append(perPerson[name], obs)
		}
	}

	clusters := make([]faces.Cluster, 0, len(perPerson))
	names := make([]string, 0, len(perPerson))
	for name := range perPerson {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		clusters = append(clusters, faces.Cluster{PersonName: name, Members: perPerson[name]})
	}

	result, err := organize.New(log).ByPerson(ctx, clusters, dest, organize.Options{
		DryRun:     dryRun,
		DateNested: mustGetBool(cmd, "by-date"),
	})
	if err != nil {
		return fmt.Errorf("sorting failed: %w", err)
	}

	fmt.Printf("\nScanned %d photos (%d from cache, %d failed)\n",
		stats.Scanned, stats.FromCache, stats.Failed)
	fmt.Printf("Sorted %d photos for %d people:\n", result.Organized, len(result.PerPerson))
	for _, name := range names {
		if n, ok := result.PerPerson[faces.SanitizePersonName(name)]; ok {
			fmt.Printf("  %s: %d photos\n", name, n)
		}
	}
	if result.Failed > 0 {
		fmt.Printf("Failed: %d photos (see log for details)\n", result.Failed)
	}

	return nil
}

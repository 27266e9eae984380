package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"facesort/internal/dedupe"
	"facesort/internal/scan"
)

var dupesCmd = &cobra.Command{
	Use:   "dupes [source-dir]",
	Short: "Find duplicate photos",
	Long: `Dupes reports groups of byte-identical photos in the source directory.
With --near it also reports visually similar photos (recompressed or resized
copies) using perceptual hashing. Nothing is deleted; resolution is up to
you.`,
	Args: cobra.ExactArgs(1),
	RunE: runDupes,
}

func init() {
	rootCmd.AddCommand(dupesCmd)

	dupesCmd.Flags().Bool("near", false, "Also report visually similar photos")
	dupesCmd.Flags().Int("threshold", dedupe.DefaultNearThreshold, "Hamming distance threshold for --near")
}

func runDupes(cmd *cobra.Command, args []string) error {
	source := args[0]
	if err := requireDir(source); err != nil {
		return err
	}

	cfg, _, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	files, err := scan.ListImages(source, cfg.Scan.Extensions, cfg.Scan.MinFileSize)
	if err != nil {
		return err
	}
	fmt.Printf("Checking %d photos for duplicates...\n\n", len(files))

	exact, err := dedupe.FindExact(ctx, files)
	if err != nil {
		return fmt.Errorf("duplicate search failed: %w", err)
	}

	if len(exact) == 0 {
		fmt.Println("No exact duplicates found.")
	} else {
		fmt.Printf("Exact duplicates (%d groups):\n", len(exact))
		for i, group := range exact {
			fmt.Printf("  Group %d (%d bytes each):\n", i+1, group.Size)
			for _, path := range group.Paths {
				fmt.Printf("    %s\n", path)
			}
		}
	}

	if !mustGetBool(cmd, "near") {
		return nil
	}

	near, err := dedupe.FindNear(ctx, files, mustGetInt(cmd, "threshold"))
	if err != nil {
		return fmt.Errorf("near-duplicate search failed: %w", err)
	}

	fmt.Println()
	if len(near) == 0 {
		fmt.Println("No near duplicates found.")
		return nil
	}
	fmt.Printf("Near duplicates (%d groups):\n", len(near))
	for i, group := range near {
		fmt.Printf("  Group %d:\n", i+1)
		for _, path := range group.Paths {
			fmt.Printf("    %s\n", path)
		}
	}

	return nil
}

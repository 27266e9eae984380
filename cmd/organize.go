package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"facesort/internal/organize"
	"facesort/internal/scan"
)

var organizeCmd = &cobra.Command{
	Use:   "organize [source-dir] [destination-dir]",
	Short: "Organize photos into a date directory tree",
	Long: `Organize moves photos from the source directory into
destination/YYYY/MM-MonthName/ based on when each photo was taken. The date
comes from EXIF metadata when present, otherwise from the file modification
time. Files are moved by default; use --copy to keep the originals.`,
	Args: cobra.ExactArgs(2),
	RunE: runOrganize,
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	organizeCmd.Flags().Bool("copy", false, "Copy files instead of moving them")
	organizeCmd.Flags().Bool("dry-run", false, "Preview changes without touching any file")
}

func runOrganize(cmd *cobra.Command, args []string) error {
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

	transfer := organize.TransferMove
	if mustGetBool(cmd, "copy") {
		transfer = organize.TransferCopy
	}
	dryRun := mustGetBool(cmd, "dry-run")

	ctx, cancel := signalContext()
	defer cancel()

	files, err := scan.ListImages(source, cfg.Scan.Extensions, cfg.Scan.MinFileSize)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d photos in %s\n", len(files), source)
	if dryRun {
		fmt.Println("Mode: DRY RUN (no changes will be applied)")
	}

	stats, err := organize.New(log).ByDate(ctx, files, dest, organize.Options{
		Transfer: transfer,
		DryRun:   dryRun,
	})
	if err != nil {
		return fmt.Errorf("organizing failed: %w", err)
	}

	fmt.Printf("\nOrganized: %d photos\n", stats.Organized)
	if stats.Failed > 0 {
		fmt.Printf("Failed: %d photos (see log for details)\n", stats.Failed)
	}

	return nil
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"facesort/internal/detect"
	"facesort/internal/faces"
)

var similarCmd = &cobra.Command{
	Use:   "similar [image]",
	Short: "Find faces similar to the ones in an image",
	Long: `Similar detects the faces in the given image and searches the last scan
session for the closest faces, using an approximate nearest neighbour index
over the session's embeddings.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().Int("count", 5, "Number of similar faces per query face")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", imagePath, err)
	}

	cfg, _, err := setup()
	if err != nil {
		return err
	}

	session, err := faces.LoadSession(cfg.Paths.SessionFile())
	if err != nil {
		return fmt.Errorf("no scan session found, run 'facesort scan' first: %w", err)
	}
	observations := session.Observations()
	if len(observations) == 0 {
		return fmt.Errorf("last scan session contains no faces")
	}

	ctx, cancel := signalContext()
	defer cancel()

	client := detect.NewClient(cfg.Embedding.URL)
	queries, err := client.DetectFaces(ctx, imagePath, data)
	if err != nil {
		return fmt.Errorf("face detection failed: %w", err)
	}
	if len(queries) == 0 {
		fmt.Println("No faces found in the image.")
		return nil
	}

	index := faces.NewIndex(observations)
	count := mustGetInt(cmd, "count")

	fmt.Printf("Found %d faces, searching %d indexed faces...\n", len(queries), index.Count())
	for i, query := range queries {
		neighbors, err := index.Search(query.Embedding, count)
		if err != nil {
			return fmt.Errorf("search failed for face %d: %w", i+1, err)
		}

		fmt.Printf("\nFace %d:\n", i+1)
		for _, n := range neighbors {
			fmt.Printf("  %.3f  %s\n", n.Distance, filepath.Base(n.Observation.SourceImage))
		}
	}

	return nil
}

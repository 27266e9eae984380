package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"facesort/internal/faces"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List named people",
	Long: `People lists everyone registered with "facesort name", together with how
many photos of them the last scan session contains.`,
	RunE: runPeople,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
}

func runPeople(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	registry, err := faces.LoadRegistry(cfg.Paths.PeopleFile())
	if err != nil {
		return fmt.Errorf("could not load people registry: %w", err)
	}
	if registry.Len() == 0 {
		fmt.Println("No people named yet. Run 'facesort scan' and 'facesort name' first.")
		return nil
	}

	// photo counts from the session, when one exists
	counts := make(map[string]int)
	if session, err := faces.LoadSession(cfg.Paths.SessionFile()); err == nil {
		for _, cluster := range session.Clusters {
			if cluster.PersonName == "" {
				continue
			}

			images := make(map[string]bool)
			for _, obs := range cluster.Members {
				images[obs.SourceImage] = true
			}
			counts[cluster.PersonName] += len(images)
		}
	}

	fmt.Printf("%d named people:\n", registry.Len())
	for _, person := range registry.People() {
		if n, ok := counts[person.Name]; ok {
			fmt.Printf("  %s (%d photos in last scan)\n", person.Name, n)
		} else {
			fmt.Printf("  %s\n", person.Name)
		}
	}

	return nil
}

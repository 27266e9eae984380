package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"facesort/internal/faces"
)

var nameCmd = &cobra.Command{
	Use:   "name [cluster] [person...]",
	Short: "Name a face cluster from the last scan",
	Long: `Name attaches a person name to a cluster from the last scan session and
registers the person for future matching with "facesort sort". The name may
contain spaces; it is sanitized before being used as a folder name.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runName,
}

func init() {
	rootCmd.AddCommand(nameCmd)
}

func runName(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("cluster must be a number, got %q", args[0])
	}
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if faces.SanitizePersonName(name) == "" {
		return fmt.Errorf("name %q has no usable characters", name)
	}

	cfg, _, err := setup()
	if err != nil {
		return err
	}

	session, err := faces.LoadSession(cfg.Paths.SessionFile())
	if err != nil {
		return fmt.Errorf("no scan session found, run 'facesort scan' first: %w", err)
	}
	if index < 0 || index >= len(session.Clusters) {
		return fmt.Errorf("cluster %d does not exist (session has %d clusters)", index, len(session.Clusters))
	}

	session.Clusters[index].PersonName = name
	if err := session.Save(cfg.Paths.SessionFile()); err != nil {
		return fmt.Errorf("could not save session: %w", err)
	}

	registry, err := faces.LoadRegistry(cfg.Paths.PeopleFile())
	if err != nil {
		return fmt.Errorf("could not load people registry: %w", err)
	}
	registry.Register(name, session.Clusters[index].Representative().Embedding)
	if err := registry.Save(cfg.Paths.PeopleFile()); err != nil {
		return fmt.Errorf("could not save people registry: %w", err)
	}

	fmt.Printf("Cluster %d (%d faces) named %q\n", index, session.Clusters[index].Size(), name)
	return nil
}

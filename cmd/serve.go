package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"facesort/internal/detect"
	"facesort/internal/scan"
	"facesort/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review web server",
	Long: `Serve starts an HTTP server for reviewing scan results in a browser:
listing face clusters, previewing face crops, naming people, and launching
new scans with live progress.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (0 = configured default)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Serve.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Serve.Host = host
	}

	cache := openCache(cfg, log)
	client := detect.NewClient(cfg.Embedding.URL)
	pipeline := scan.NewPipeline(cfg, client, cache, log)

	server := web.NewServer(cfg, pipeline, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facesort web UI on http://%s:%d\n", cfg.Serve.Host, cfg.Serve.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

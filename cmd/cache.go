package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"facesort/internal/encodings"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the face encoding cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache statistics",
	RunE:  runCacheInfo,
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Remove cache entries older than a cutoff",
	RunE:  runCacheEvict,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cache entries",
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheEvictCmd.Flags().Duration("older-than", 0, "Evict entries older than this (0 = configured default)")
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	cache, err := encodings.Open(cfg.Paths.CacheFile())
	if err != nil {
		return fmt.Errorf("could not load cache: %w", err)
	}

	fmt.Printf("Cache file: %s\n", cfg.Paths.CacheFile())
	fmt.Printf("Entries: %d\n", cache.Len())
	if info, err := os.Stat(cfg.Paths.CacheFile()); err == nil {
		fmt.Printf("Size on disk: %d bytes\n", info.Size())
	}
	return nil
}

func runCacheEvict(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	maxAge := mustGetDuration(cmd, "older-than")
	if maxAge == 0 {
		maxAge = cfg.Cache.MaxAge
	}

	cache, err := encodings.Open(cfg.Paths.CacheFile())
	if err != nil {
		return fmt.Errorf("could not load cache: %w", err)
	}

	removed := cache.EvictOlderThan(maxAge)
	if err := cache.Persist(); err != nil {
		log.WithError(err).Warn("could not persist cache after eviction")
	}
	fmt.Printf("Evicted %d entries older than %s (%d remain)\n", removed, maxAge, cache.Len())
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	if err := os.Remove(cfg.Paths.CacheFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not remove cache file: %w", err)
	}
	fmt.Println("Cache cleared.")
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapetech/m3ucat/internal/config"
	"github.com/snapetech/m3ucat/internal/database"
	"github.com/snapetech/m3ucat/internal/downloader"
	"github.com/snapetech/m3ucat/internal/logger"
	syncsvc "github.com/snapetech/m3ucat/internal/sync"
)

var syncSourceID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a foreground sync for one source, or all sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.NewWithLevel(cfg.LogLevel)

		if err := os.MkdirAll(cfg.DatabaseDir, 0o755); err != nil {
			return err
		}
		db, err := database.NewDB(cfg.DatabaseDir, log)
		if err != nil {
			return err
		}
		defer db.Close()

		dl := downloader.New(downloader.Config{
			Timeout:     cfg.DownloadTimeout,
			MaxAttempts: cfg.DownloadMaxAttempts,
			BackoffBase: cfg.DownloadBackoffBase,
			Concurrency: cfg.DownloadConcurrency,
			RateLimit:   cfg.DownloadRateLimit,
		}, log)
		syncs := syncsvc.New(syncsvc.Config{ChunkSize: cfg.InsertChunkSize}, db, dl, log)

		if syncSourceID != "" {
			result := syncs.Run(cmd.Context(), syncSourceID)
			fmt.Println(result)
			if !result.Success {
				return fmt.Errorf("sync failed for source %s", syncSourceID)
			}
			return nil
		}

		results, err := syncs.SyncAll(cmd.Context())
		if err != nil {
			return err
		}
		failed := 0
		for _, r := range results {
			fmt.Printf("%s: %s\n", r.SourceID, r)
			if !r.Success {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d syncs failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncSourceID, "source", "", "source id to sync (default: all sources)")
	rootCmd.AddCommand(syncCmd)
}

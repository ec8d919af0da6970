package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/m3ucat/internal/api"
	"github.com/snapetech/m3ucat/internal/config"
	"github.com/snapetech/m3ucat/internal/database"
	"github.com/snapetech/m3ucat/internal/downloader"
	"github.com/snapetech/m3ucat/internal/logger"
	"github.com/snapetech/m3ucat/internal/scheduler"
	syncsvc "github.com/snapetech/m3ucat/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog HTTP API",
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
		server := api.NewServer(db, syncs, log)

		httpSrv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", cfg.ListenAddr).Msg("HTTP API listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		if cfg.SyncInterval > 0 {
			sched := scheduler.New(cfg.SyncInterval, syncs, log)
			g.Go(func() error {
				err := sched.Run(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info().Msg("shutting down")
			return httpSrv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String("listen-addr", ":8484", "HTTP listen address")
	viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen-addr"))
	rootCmd.AddCommand(serveCmd)
}

// Package config loads runtime configuration from a config file and
// M3UCAT_* environment variables via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds catalog, API and downloader settings.
type Config struct {
	// DatabaseDir is the directory holding the sqlite catalog file.
	DatabaseDir string

	// ListenAddr is the HTTP listen address for the serve command.
	ListenAddr string

	LogLevel string

	// Downloader
	DownloadTimeout     time.Duration // per-request hard timeout
	DownloadMaxAttempts int           // retry bound per URL
	DownloadBackoffBase time.Duration // first backoff; doubles per attempt
	DownloadConcurrency int           // max simultaneous batch fetches
	DownloadRateLimit   float64       // requests/sec across all fetches; 0 = unlimited

	// Sync
	InsertChunkSize int           // channel rows per bulk-insert chunk
	SyncInterval    time.Duration // periodic re-sync of all sources; 0 = disabled
}

// Load reads configuration from viper (config file + env). Callers must have
// initialised viper (config path, env prefix) before calling Load.
func Load() (*Config, error) {
	c := &Config{
		DatabaseDir:         getString("database_dir", "./data"),
		ListenAddr:          getString("listen_addr", ":8484"),
		LogLevel:            getString("log_level", "info"),
		DownloadTimeout:     getDuration("download_timeout", 60*time.Second),
		DownloadMaxAttempts: getInt("download_max_attempts", 3),
		DownloadBackoffBase: getDuration("download_backoff_base", 1*time.Second),
		DownloadConcurrency: getInt("download_concurrency", 5),
		DownloadRateLimit:   viper.GetFloat64("download_rate_limit"),
		InsertChunkSize:     getInt("insert_chunk_size", 500),
		SyncInterval:        getDuration("sync_interval", 0),
	}
	if c.DownloadMaxAttempts < 1 {
		return nil, fmt.Errorf("download_max_attempts must be >= 1, got %d", c.DownloadMaxAttempts)
	}
	if c.DownloadConcurrency < 1 {
		return nil, fmt.Errorf("download_concurrency must be >= 1, got %d", c.DownloadConcurrency)
	}
	if c.InsertChunkSize < 1 {
		return nil, fmt.Errorf("insert_chunk_size must be >= 1, got %d", c.InsertChunkSize)
	}
	if c.DownloadRateLimit < 0 {
		return nil, fmt.Errorf("download_rate_limit must be >= 0, got %f", c.DownloadRateLimit)
	}
	if c.SyncInterval < 0 {
		return nil, fmt.Errorf("sync_interval must be >= 0, got %s", c.SyncInterval)
	}
	return c, nil
}

func getString(key, def string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return def
}

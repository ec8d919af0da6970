// Package downloader fetches playlist text over HTTP with bounded retries,
// exponential backoff and a bounded-concurrency batch mode.
package downloader

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/snapetech/m3ucat/internal/httpclient"
)

const maxBodySize = 512 << 20 // 512 MiB cap on a decompressed playlist body

// Config drives a Downloader. Zero values are replaced with defaults by New.
type Config struct {
	// Timeout is the hard per-request timeout. Default: 60s.
	Timeout time.Duration

	// MaxAttempts bounds retries per URL. Default: 3.
	MaxAttempts int

	// BackoffBase is the first retry delay; it doubles per attempt. Default: 1s.
	BackoffBase time.Duration

	// Concurrency is the number of simultaneous in-flight batch downloads.
	// Default: 5.
	Concurrency int

	// RateLimit caps outbound requests per second across all fetches.
	// 0 = unlimited.
	RateLimit float64

	// UserAgent sent on every request.
	UserAgent string

	// Client may be nil to use a client derived from the shared transport.
	Client *http.Client
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 1 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.UserAgent == "" {
		c.UserAgent = "m3ucat/1.0"
	}
	if c.Client == nil {
		c.Client = httpclient.WithTimeout(c.Timeout)
	}
}

// DownloadError is the terminal error after exhausting all retries for one
// URL. It carries the last attempt's failure message.
type DownloadError struct {
	URL      string
	Attempts int
	LastErr  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempts: %v", e.URL, e.Attempts, e.LastErr)
}

func (e *DownloadError) Unwrap() error { return e.LastErr }

// BatchResult is the per-URL outcome of FetchAll. A failed URL carries its
// DownloadError; siblings are unaffected.
type BatchResult struct {
	URL  string
	Body string
	Err  error
}

// Downloader fetches playlist bodies. Safe for concurrent use.
type Downloader struct {
	cfg     Config
	log     zerolog.Logger
	limiter *rate.Limiter
}

// New returns a Downloader for cfg.
func New(cfg Config, log zerolog.Logger) *Downloader {
	cfg.applyDefaults()
	d := &Downloader{
		cfg: cfg,
		log: log.With().Str("module", "downloader").Logger(),
	}
	if cfg.RateLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return d
}

// Fetch downloads url, retrying transport errors and non-200 responses up to
// MaxAttempts with exponential backoff (BackoffBase << attempt). Backoff
// sleeps block only this call path. Returns the response body as text, or a
// *DownloadError once retries are exhausted.
func (d *Downloader) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.cfg.BackoffBase << (attempt - 1)
			d.log.Debug().Str("url", url).Int("attempt", attempt+1).Dur("backoff", delay).Msg("retrying download")
			select {
			case <-ctx.Done():
				return "", &DownloadError{URL: url, Attempts: attempt, LastErr: ctx.Err()}
			case <-time.After(delay):
			}
		}
		body, err := d.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		d.log.Warn().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("download attempt failed")
		if ctx.Err() != nil {
			break
		}
	}
	return "", &DownloadError{URL: url, Attempts: d.cfg.MaxAttempts, LastErr: lastErr}
}

// FetchAll downloads all urls with at most Concurrency in flight, reporting a
// per-URL result in input order. A single URL's exhausted-retry failure never
// aborts its siblings.
func (d *Downloader) FetchAll(ctx context.Context, urls []string) []BatchResult {
	results := make([]BatchResult, len(urls))
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			body, err := d.Fetch(ctx, u)
			results[i] = BatchResult{URL: u, Body: body, Err: err}
		}(i, u)
	}
	wg.Wait()
	return results
}

func (d *Downloader) fetchOnce(ctx context.Context, url string) (string, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	release := httpclient.GlobalHostSem.Acquire(url)
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := d.cfg.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	reader, err := decodeBody(resp)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

// decodeBody returns a reader over the decompressed response body, honouring
// the Content-Encoding negotiated via Accept-Encoding.
func decodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, nil
	default:
		return resp.Body, nil
	}
}

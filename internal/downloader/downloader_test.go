package downloader

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDownloader(t *testing.T) *Downloader {
	t.Helper()
	return New(Config{
		Timeout:     5 * time.Second,
		BackoffBase: time.Millisecond,
	}, zerolog.Nop())
}

func TestFetch_success(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "#EXTM3U\n")
	}))
	defer srv.Close()

	body, err := testDownloader(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", body)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_recoversWithinRetryBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	body, err := testDownloader(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetch_exhaustsExactlyMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testDownloader(t).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load(), "default budget is exactly three attempts")

	var derr *DownloadError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 3, derr.Attempts)
	assert.Equal(t, srv.URL, derr.URL)
	// The terminal error surfaces the final attempt's failure.
	assert.Contains(t, derr.LastErr.Error(), "unexpected status 500")
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestFetch_contextCancelStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(Config{BackoffBase: time.Minute}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := d.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "must not sit out the backoff")
}

func TestFetch_gzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		fmt.Fprint(zw, "compressed playlist")
		zw.Close()
	}))
	defer srv.Close()

	body, err := testDownloader(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "compressed playlist", body)
}

func TestFetch_brotliBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		fmt.Fprint(bw, "brotli playlist")
		bw.Close()
	}))
	defer srv.Close()

	body, err := testDownloader(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "brotli playlist", body)
}

func TestFetch_sendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m3ucat/1.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	_, err := testDownloader(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
}

func TestFetchAll_isolatesFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "good body")
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	urls := []string{good.URL, bad.URL, good.URL}
	results := testDownloader(t).FetchAll(context.Background(), urls)
	require.Len(t, results, 3)

	// Results come back in input order.
	for i, r := range results {
		assert.Equal(t, urls[i], r.URL)
	}
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "good body", results[0].Body)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestFetchAll_boundsConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	d := New(Config{Concurrency: 2, BackoffBase: time.Millisecond}, zerolog.Nop())
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/?i=%d", srv.URL, i)
	}
	results := d.FetchAll(context.Background(), urls)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestConfig_applyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.NotNil(t, cfg.Client)
}

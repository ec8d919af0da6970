// Package health probes playlist provider reachability without running a full
// sync.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snapetech/m3ucat/internal/httpclient"
)

const probeTimeout = 15 * time.Second

// CheckProvider issues a single GET against the source URL and discards the
// body. Returns nil when the provider answers 200, an error describing the
// failure otherwise. Some providers reject HEAD, so GET is used throughout.
func CheckProvider(ctx context.Context, sourceURL string) error {
	if sourceURL == "" {
		return fmt.Errorf("no source URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpclient.WithTimeout(probeTimeout).Do(req)
	if err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}
	// Cap the drain; playlist bodies can be large and the probe only needs the
	// status line.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}
	return nil
}

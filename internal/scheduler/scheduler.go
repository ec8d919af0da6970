// Package scheduler re-runs the full-catalog sync on a fixed interval so
// registered sources track their upstream playlists without manual triggers.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/m3ucat/internal/domain"
)

// Syncer runs one batch sync over every registered source.
type Syncer interface {
	SyncAll(ctx context.Context) ([]domain.SyncResult, error)
}

// Scheduler drives periodic batch syncs. A run that fails (or partially
// fails) is logged and the schedule continues; the next tick retries
// everything.
type Scheduler struct {
	interval time.Duration
	syncer   Syncer
	log      zerolog.Logger
}

// New returns a Scheduler ticking at interval. Intervals below one minute are
// raised to one minute to keep providers off our backs.
func New(interval time.Duration, syncer Syncer, log zerolog.Logger) *Scheduler {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		syncer:   syncer,
		log:      log.With().Str("module", "scheduler").Logger(),
	}
}

// Run blocks until ctx is cancelled, executing one batch sync per tick. The
// first run happens after one full interval, not at startup.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("periodic sync enabled")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("periodic sync stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	results, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("batch sync failed to start")
		return
	}
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.log.Info().Int("sources", len(results)).Int("failed", failed).Msg("batch sync finished")
}

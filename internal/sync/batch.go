package sync

import (
	"context"
	gosync "sync"

	"github.com/snapetech/m3ucat/internal/domain"
)

// batchConcurrency bounds how many sources sync simultaneously in SyncAll.
// Each run's HTTP fetch is additionally bounded by the downloader and the
// per-host semaphore.
const batchConcurrency = 5

// SyncAll runs a sync for every known source as independent runs with bounded
// concurrency and returns the per-source results in listing order. One
// source's failure never aborts the others.
func (s *Service) SyncAll(ctx context.Context) ([]domain.SyncResult, error) {
	sources, err := s.sources.List(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SyncResult, len(sources))
	sem := make(chan struct{}, batchConcurrency)
	var wg gosync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, sourceID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = s.Run(ctx, sourceID)
		}(i, src.ID)
	}
	wg.Wait()
	return results, nil
}

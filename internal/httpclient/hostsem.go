package httpclient

import (
	"net/url"
	"sync"
)

// HostSemaphore is a process-global per-host concurrency limiter. Independent
// sync runs for different sources share it, so many concurrent syncs against
// the same provider never hammer that host beyond the cap even though each
// run's batch pool is bounded separately.
//
// Usage:
//
//	release := GlobalHostSem.Acquire(rawURL)
//	defer release()
type HostSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

// GlobalHostSem is the shared per-host limiter. Default cap: 8 concurrent
// requests per host across the entire process.
var GlobalHostSem = NewHostSemaphore(8)

func NewHostSemaphore(concurrency int) *HostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostSemaphore{
		sems:  make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// Acquire blocks until a slot is available for rawURL's host and returns a
// release func.
func (h *HostSemaphore) Acquire(rawURL string) func() {
	sem := h.semFor(rawURL)
	sem <- struct{}{}
	return func() { <-sem }
}

func (h *HostSemaphore) semFor(rawURL string) chan struct{} {
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		key = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	s, ok := h.sems[key]
	if !ok {
		s = make(chan struct{}, h.limit)
		h.sems[key] = s
	}
	h.mu.Unlock()
	return s
}

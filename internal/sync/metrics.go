package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "m3ucat_syncs_started_total",
		Help: "Number of sync runs started.",
	})
	syncsByOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m3ucat_syncs_finished_total",
		Help: "Number of finished sync runs by outcome.",
	}, []string{"outcome"}) // success | failed | source_deleted
	entriesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "m3ucat_entries_parsed_total",
		Help: "Playlist entries parsed across all sync runs.",
	})
	parseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "m3ucat_parse_errors_total",
		Help: "Playlist lines skipped due to parse or validation errors.",
	})
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "m3ucat_sync_duration_seconds",
		Help:    "Wall-clock duration of full sync runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Package sync orchestrates one playlist source's full ingestion run:
// download, parse, categorize, and transactional catalog replacement with
// status tracking.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/m3ucat/internal/categorize"
	"github.com/snapetech/m3ucat/internal/database"
	"github.com/snapetech/m3ucat/internal/domain"
	"github.com/snapetech/m3ucat/internal/downloader"
	"github.com/snapetech/m3ucat/internal/parser"
)

// ErrSourceDeleted reports that the source row vanished mid-sync. It is a
// soft failure: no status write is attempted, since the row is gone.
var ErrSourceDeleted = errors.New("source deleted during sync")

// ErrSourceNotFound reports that the requested source does not exist.
var ErrSourceNotFound = errors.New("source not found")

// Config drives the orchestrator. Zero values get defaults from New.
type Config struct {
	// ChunkSize is the number of channel rows per bulk-insert chunk.
	// Default: 500.
	ChunkSize int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
}

// Service coordinates sync runs. Each run is single-threaded; multiple
// sources may sync concurrently as independent runs.
type Service struct {
	cfg      Config
	log      zerolog.Logger
	dl       *downloader.Downloader
	db       *database.DB
	sources  *database.SourceRepo
	channels *database.ChannelRepo
	series   *database.SeriesRepo

	mu      gosync.Mutex
	running map[string]struct{}
}

// New returns a sync Service over the given store and downloader.
func New(cfg Config, db *database.DB, dl *downloader.Downloader, log zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:      cfg,
		log:      log.With().Str("module", "sync").Logger(),
		dl:       dl,
		db:       db,
		sources:  database.NewSourceRepo(db),
		channels: database.NewChannelRepo(db),
		series:   database.NewSeriesRepo(db),
		running:  make(map[string]struct{}),
	}
}

// StartSync triggers a fire-and-forget sync run for sourceID and returns the
// job id (the source id itself). The caller observes the outcome only by
// polling Status. A second trigger while a run is in flight returns the same
// job id without starting a second run.
func (s *Service) StartSync(sourceID string) (string, error) {
	if _, err := s.sources.Get(context.Background(), sourceID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrSourceNotFound
		}
		return "", err
	}

	s.mu.Lock()
	if _, busy := s.running[sourceID]; busy {
		s.mu.Unlock()
		return sourceID, nil
	}
	s.running[sourceID] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, sourceID)
			s.mu.Unlock()
		}()
		// No cancellation token: the only way to stop an in-flight sync's
		// effects is to delete the source record.
		res := s.Run(context.Background(), sourceID)
		s.log.Info().Str("source_id", sourceID).Stringer("result", res).Msg("background sync finished")
	}()

	return sourceID, nil
}

// Status returns the persisted sync state for polling.
func (s *Service) Status(ctx context.Context, sourceID string) (*domain.SyncStatus, error) {
	src, err := s.sources.Get(ctx, sourceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}
	return &domain.SyncStatus{
		Status:       src.LastStatus,
		LastFetched:  src.LastFetched,
		TotalEntries: src.TotalEntries,
	}, nil
}

// Run executes one full sync for sourceID and reports a structured result.
func (s *Service) Run(ctx context.Context, sourceID string) domain.SyncResult {
	start := time.Now()
	syncsStarted.Inc()
	log := s.log.With().Str("source_id", sourceID).Logger()
	result := domain.SyncResult{SourceID: sourceID}

	src, err := s.sources.Get(ctx, sourceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			err = ErrSourceNotFound
		}
		// Unknown source: fatal, no state change.
		return s.finish(result, start, err, false)
	}

	if err := s.sources.SetStatus(ctx, sourceID, domain.StatusFetching); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return s.softDeleted(result, start, log)
		}
		return s.finish(result, start, err, false)
	}
	body, err := s.dl.Fetch(ctx, src.URL)
	if err != nil {
		return s.finish(result, start, err, true)
	}

	if err := s.sources.SetStatus(ctx, sourceID, domain.StatusParsing); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return s.softDeleted(result, start, log)
		}
		return s.finish(result, start, err, false)
	}
	playlist := parser.Parse(src.URL, body)
	set := categorize.Categorize(playlist.Entries)

	entriesParsed.Add(float64(playlist.TotalEntries))
	parseErrors.Add(float64(len(playlist.Errors)))
	result.TotalEntries = playlist.TotalEntries
	for _, pe := range playlist.Errors {
		result.Errors = append(result.Errors, fmt.Sprintf("line %d: %s", pe.LineNumber, pe.Reason))
	}

	live, movies, seriesCount, episodes := set.Counts()
	log.Info().
		Int("entries", playlist.TotalEntries).
		Int("parse_errors", len(playlist.Errors)).
		Int("livestreams", live).
		Int("movies", movies).
		Int("series", seriesCount).
		Int("episodes", episodes).
		Msg("playlist classified")

	if err := s.persist(ctx, src, set); err != nil {
		if errors.Is(err, ErrSourceDeleted) {
			return s.softDeleted(result, start, log)
		}
		return s.finish(result, start, err, true)
	}

	if err := s.sources.MarkSynced(ctx, sourceID, playlist.TotalEntries, time.Now()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return s.softDeleted(result, start, log)
		}
		return s.finish(result, start, err, false)
	}

	result.Success = true
	result.Livestreams = live
	result.Movies = movies
	result.Series = seriesCount
	result.Episodes = episodes
	result.Duration = time.Since(start)
	syncsByOutcome.WithLabelValues("success").Inc()
	syncDuration.Observe(result.Duration.Seconds())
	log.Info().Stringer("result", result).Msg("sync succeeded")
	return result
}

// softDeleted records the concurrent-deletion outcome: success=false, no
// status write attempted, since the source row is gone.
func (s *Service) softDeleted(result domain.SyncResult, start time.Time, log zerolog.Logger) domain.SyncResult {
	result.Success = false
	result.Errors = append(result.Errors, ErrSourceDeleted.Error())
	result.Duration = time.Since(start)
	syncsByOutcome.WithLabelValues("source_deleted").Inc()
	log.Warn().Msg("source deleted during sync; aborted")
	return result
}

// finish records a failed run. markFailed controls whether a FAILED status
// write is attempted (skipped when the failure precedes any state change).
func (s *Service) finish(result domain.SyncResult, start time.Time, err error, markFailed bool) domain.SyncResult {
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	result.Duration = time.Since(start)
	syncsByOutcome.WithLabelValues("failed").Inc()
	syncDuration.Observe(result.Duration.Seconds())
	s.log.Error().Err(err).Str("source_id", result.SourceID).Msg("sync failed")
	if markFailed {
		if serr := s.sources.SetStatus(context.Background(), result.SourceID, domain.StatusFailed); serr != nil && !errors.Is(serr, database.ErrNotFound) {
			s.log.Error().Err(serr).Str("source_id", result.SourceID).Msg("could not record FAILED status")
		}
	}
	return result
}

// persist replaces the profile's catalog with the classified set:
// delete-then-insert, chunked channel writes, find-or-create series with
// idempotent episode insertion.
func (s *Service) persist(ctx context.Context, src *domain.Source, set *domain.ClassifiedSet) error {
	if err := s.db.ReplaceProfileCatalog(ctx, src.ProfileID); err != nil {
		return err
	}

	channels := make([]domain.Channel, 0, len(set.Livestreams)+len(set.Movies))
	for _, c := range set.Livestreams {
		row, err := channelRow(c, src.ProfileID)
		if err != nil {
			return err
		}
		channels = append(channels, row)
	}
	for _, c := range set.Movies {
		row, err := channelRow(c, src.ProfileID)
		if err != nil {
			return err
		}
		channels = append(channels, row)
	}

	for offset := 0; offset < len(channels); offset += s.cfg.ChunkSize {
		// Opportunistic deletion guard between chunk writes. Work already
		// dispatched before the check still completes; this is a best-effort
		// abort, not transactional isolation.
		if err := s.checkSourceAlive(ctx, src.ID); err != nil {
			return err
		}
		end := offset + s.cfg.ChunkSize
		if end > len(channels) {
			end = len(channels)
		}
		if err := s.channels.InsertBatch(ctx, channels[offset:end]); err != nil {
			return err
		}
	}

	for _, group := range set.SeriesGroups {
		if err := s.checkSourceAlive(ctx, src.ID); err != nil {
			return err
		}
		row, err := s.series.FindOrCreate(ctx, domain.Series{
			Name:           group.SeriesName,
			NormalizedName: normalizeKey(group.SeriesName),
			Logo:           group.Logo,
			GroupTitle:     group.GroupTitle,
			ProfileID:      src.ProfileID,
		})
		if err != nil {
			return err
		}
		if err := s.insertEpisodes(ctx, row.ID, group.Episodes); err != nil {
			return err
		}
	}
	return nil
}

// insertEpisodes deduplicates the incoming batch by (season, episode) with
// last-wins, filters out keys already present for the series, and
// bulk-inserts the remainder. Insertion is idempotent against the series'
// existing episode set.
func (s *Service) insertEpisodes(ctx context.Context, seriesID string, episodes []domain.ClassifiedEntry) error {
	byKey := make(map[database.EpisodeKey]domain.Episode, len(episodes))
	order := make([]database.EpisodeKey, 0, len(episodes))
	for _, e := range episodes {
		key := database.EpisodeKey{Season: e.Episode.SeasonNumber, Episode: e.Episode.EpisodeNumber}
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = domain.Episode{
			SeriesID:      seriesID,
			SeasonNumber:  e.Episode.SeasonNumber,
			EpisodeNumber: e.Episode.EpisodeNumber,
			Title:         episodeTitle(e),
			URL:           e.URL,
			TVGName:       e.TVGName,
		}
	}

	existing, err := s.series.ExistingEpisodeKeys(ctx, seriesID)
	if err != nil {
		return err
	}

	rows := make([]domain.Episode, 0, len(byKey))
	for _, key := range order {
		if _, dup := existing[key]; dup {
			continue
		}
		rows = append(rows, byKey[key])
	}
	return s.series.InsertEpisodes(ctx, rows)
}

func (s *Service) checkSourceAlive(ctx context.Context, sourceID string) error {
	alive, err := s.sources.Exists(ctx, sourceID)
	if err != nil {
		return err
	}
	if !alive {
		return ErrSourceDeleted
	}
	return nil
}

func channelRow(c domain.ClassifiedEntry, profileID string) (domain.Channel, error) {
	meta, err := c.MetadataJSON()
	if err != nil {
		return domain.Channel{}, fmt.Errorf("marshal metadata for %q: %w", c.DisplayName, err)
	}
	return domain.Channel{
		ID:          c.ID,
		TVGID:       c.TVGID,
		TVGName:     c.TVGName,
		DisplayName: c.DisplayName,
		Logo:        c.TVGLogo,
		URL:         c.URL,
		GroupTitle:  c.GroupTitle,
		ContentType: c.ContentType,
		Metadata:    meta,
		ProfileID:   profileID,
	}, nil
}

func episodeTitle(e domain.ClassifiedEntry) string {
	if e.Episode != nil && e.Episode.EpisodeTitle != "" {
		return e.Episode.EpisodeTitle
	}
	return e.DisplayName
}

func normalizeKey(seriesName string) string {
	return categorize.NormalizeKey(seriesName)
}

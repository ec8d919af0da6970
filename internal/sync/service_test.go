package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/m3ucat/internal/categorize"
	"github.com/snapetech/m3ucat/internal/database"
	"github.com/snapetech/m3ucat/internal/domain"
	"github.com/snapetech/m3ucat/internal/downloader"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="cnn" tvg-name="CNN" tvg-logo="http://e/cnn.png" group-title="News",CNN International
http://stream.example.com/cnn
#EXTINF:-1 group-title="Movies",Epic Film (2023)
http://stream.example.com/epic.mp4
#EXTINF:-1 group-title="Series",Show Name S01E01
http://stream.example.com/show/1
#EXTINF:-1 group-title="Series",Show Name S01E02
http://stream.example.com/show/2
http://stream.example.com/orphan
`

type fixture struct {
	svc     *Service
	db      *database.DB
	sources *database.SourceRepo
	src     *domain.Source
	srv     *httptest.Server
}

// newFixture stands up an in-memory catalog, a playlist server and one
// registered source pointing at it.
func newFixture(t *testing.T, cfg Config, handler http.Handler) *fixture {
	t.Helper()
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, samplePlaylist)
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	db, err := database.NewInMemory(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dl := downloader.New(downloader.Config{BackoffBase: time.Millisecond}, zerolog.Nop())
	svc := New(cfg, db, dl, zerolog.Nop())

	sources := database.NewSourceRepo(db)
	src := &domain.Source{URL: srv.URL, Name: "provider", ProfileID: "p1"}
	require.NoError(t, sources.Insert(context.Background(), src))

	return &fixture{svc: svc, db: db, sources: sources, src: src, srv: srv}
}

func TestRun_happyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, nil)

	res := f.svc.Run(ctx, f.src.ID)
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 4, res.TotalEntries)
	assert.Equal(t, 1, res.Livestreams)
	assert.Equal(t, 1, res.Movies)
	assert.Equal(t, 1, res.Series)
	assert.Equal(t, 2, res.Episodes)
	require.Len(t, res.Errors, 1, "the orphan URL is reported, not fatal")
	assert.Contains(t, res.Errors[0], "URL without metadata")
	assert.Positive(t, res.Duration)

	src, err := f.sources.Get(ctx, f.src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, src.LastStatus)
	assert.Equal(t, 4, src.TotalEntries)
	require.NotNil(t, src.LastFetched)

	channels := database.NewChannelRepo(f.db)
	live, err := channels.ListByProfile(ctx, "p1", domain.ContentLivestream)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "CNN International", live[0].DisplayName)
	assert.JSONEq(t, `{"channel_name":"CNN International","category":"News"}`, live[0].Metadata)

	movies, err := channels.ListByProfile(ctx, "p1", domain.ContentMovie)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.JSONEq(t, `{"title":"Epic Film","year":2023}`, movies[0].Metadata)

	series := database.NewSeriesRepo(f.db)
	shows, err := series.ListByProfile(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Equal(t, "Show Name", shows[0].Name)
	assert.Equal(t, "show name", shows[0].NormalizedName)

	eps, err := series.EpisodesBySeries(ctx, shows[0].ID)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, 1, eps[0].EpisodeNumber)
	assert.Equal(t, 2, eps[1].EpisodeNumber)
}

func TestRun_rerunReplacesCatalogWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, nil)

	require.True(t, f.svc.Run(ctx, f.src.ID).Success)
	require.True(t, f.svc.Run(ctx, f.src.ID).Success)

	channels := database.NewChannelRepo(f.db)
	n, err := channels.CountByProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	series := database.NewSeriesRepo(f.db)
	shows, err := series.ListByProfile(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, shows, 1)
	eps, err := series.EpisodesBySeries(ctx, shows[0].ID)
	require.NoError(t, err)
	assert.Len(t, eps, 2)
}

func TestRun_unknownSource(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	res := f.svc.Run(context.Background(), "missing")
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "source not found")
}

func TestRun_downloadFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	res := f.svc.Run(ctx, f.src.ID)
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "failed after 3 attempts")

	src, err := f.sources.Get(ctx, f.src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, src.LastStatus)
}

func TestRun_sourceDeletedDuringDownload(t *testing.T) {
	ctx := context.Background()
	var f *fixture
	f = newFixture(t, Config{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Concurrent delete while the body is in flight: the run must end
		// softly without inventing a status row.
		assert.NoError(t, f.sources.Delete(r.Context(), f.src.ID))
		fmt.Fprint(w, samplePlaylist)
	}))

	res := f.svc.Run(ctx, f.src.ID)
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors, "source deleted during sync")

	_, err := f.sources.Get(ctx, f.src.ID)
	assert.ErrorIs(t, err, database.ErrNotFound, "no row is recreated")
}

func TestPersist_deletionGuardStopsChunkWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{ChunkSize: 2}, nil)

	// Build a classified set large enough for multiple chunks, then delete the
	// source before persisting: the pre-chunk liveness check fires before any
	// channel write.
	var entries []domain.PlaylistEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, domain.PlaylistEntry{
			ID:          fmt.Sprintf("e%d", i),
			DisplayName: fmt.Sprintf("Channel %d", i),
			GroupTitle:  "News",
			URL:         fmt.Sprintf("http://e/%d", i),
		})
	}
	set := categorize.Categorize(entries)

	require.NoError(t, f.sources.Delete(ctx, f.src.ID))
	err := f.svc.persist(ctx, f.src, set)
	assert.ErrorIs(t, err, ErrSourceDeleted)

	n, err := database.NewChannelRepo(f.db).CountByProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n, "no chunk is written once the source is gone")
}

func TestStartSync_unknownSource(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	_, err := f.svc.StartSync("missing")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestStartSync_fireAndForget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, nil)

	jobID, err := f.svc.StartSync(f.src.ID)
	require.NoError(t, err)
	assert.Equal(t, f.src.ID, jobID, "job id is the source id")

	// A second trigger while busy (or after) returns the same job id.
	again, err := f.svc.StartSync(f.src.ID)
	require.NoError(t, err)
	assert.Equal(t, jobID, again)

	require.Eventually(t, func() bool {
		st, err := f.svc.Status(ctx, f.src.ID)
		return err == nil && st.Status == domain.StatusSuccess
	}, 5*time.Second, 10*time.Millisecond, "poll until the background run lands")

	st, err := f.svc.Status(ctx, f.src.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalEntries)
	assert.NotNil(t, st.LastFetched)
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, nil)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	require.NoError(t, f.sources.Insert(ctx, &domain.Source{URL: bad.URL, Name: "broken", ProfileID: "p2"}))

	results, err := f.svc.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Results arrive in listing order (by name): "broken" then "provider".
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
}

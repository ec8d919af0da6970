package categorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/m3ucat/internal/domain"
)

func entry(display, tvgName, group, rawURL string) domain.PlaylistEntry {
	return domain.PlaylistEntry{
		ID:          "id-" + display,
		DisplayName: display,
		TVGName:     tvgName,
		GroupTitle:  group,
		URL:         rawURL,
	}
}

func TestClassify_seriesMarker(t *testing.T) {
	c := classify(entry("Show Name S02E05", "", "Series", "http://e/s"))
	require.Equal(t, domain.ContentEpisode, c.ContentType)
	require.NotNil(t, c.Episode)
	assert.Equal(t, "Show Name", c.Episode.SeriesName)
	assert.Equal(t, 2, c.Episode.SeasonNumber)
	assert.Equal(t, 5, c.Episode.EpisodeNumber)
}

func TestClassify_seriesMarkerVariants(t *testing.T) {
	tests := []struct {
		display string
		series  string
		season  int
		episode int
		title   string
	}{
		{"Show.Name.S01E01", "Show Name", 1, 1, ""},
		{"show s1e2", "show", 1, 2, ""},
		{"Breaking Point S10 E04 - The Fall", "Breaking Point", 10, 4, "The Fall"},
		{"Drama Season 3 Episode 12", "Drama", 3, 12, ""},
	}
	for _, tt := range tests {
		t.Run(tt.display, func(t *testing.T) {
			c := classify(entry(tt.display, "", "", "http://e/s"))
			require.Equal(t, domain.ContentEpisode, c.ContentType)
			assert.Equal(t, tt.series, c.Episode.SeriesName)
			assert.Equal(t, tt.season, c.Episode.SeasonNumber)
			assert.Equal(t, tt.episode, c.Episode.EpisodeNumber)
			assert.Equal(t, tt.title, c.Episode.EpisodeTitle)
		})
	}
}

func TestClassify_seriesFromTVGNameFallback(t *testing.T) {
	c := classify(entry("nondescript", "Other Show S04E07", "", "http://e/s"))
	require.Equal(t, domain.ContentEpisode, c.ContentType)
	assert.Equal(t, "Other Show", c.Episode.SeriesName)
	assert.Equal(t, 4, c.Episode.SeasonNumber)
	assert.Equal(t, 7, c.Episode.EpisodeNumber)
}

func TestClassify_movieByGroupAndYear(t *testing.T) {
	c := classify(entry("Movie Title (2023)", "", "Movies", "http://e/v.mp4"))
	require.Equal(t, domain.ContentMovie, c.ContentType)
	require.NotNil(t, c.Movie)
	assert.Equal(t, "Movie Title", c.Movie.Title)
	assert.Equal(t, 2023, c.Movie.Year)
}

func TestClassify_movieSignals(t *testing.T) {
	tests := []struct {
		name  string
		e     domain.PlaylistEntry
		title string
		year  int
	}{
		{"group keyword film", entry("Old Classic", "", "French Films", "http://e/s"), "Old Classic", 0},
		{"group keyword vod", entry("Feature", "", "VOD EN", "http://e/s"), "Feature", 0},
		{"url extension mkv", entry("Feature", "", "", "http://e/path/feature.MKV"), "Feature", 0},
		{"year token only", entry("Heist 1999", "", "", "http://e/s"), "Heist", 1999},
		{"trailing extension in name", entry("Feature (2020).mp4", "", "Cinema", "http://e/s"), "Feature", 2020},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(tt.e)
			require.Equal(t, domain.ContentMovie, c.ContentType)
			assert.Equal(t, tt.title, c.Movie.Title)
			assert.Equal(t, tt.year, c.Movie.Year)
		})
	}
}

func TestClassify_livestreamFallback(t *testing.T) {
	c := classify(entry("CNN International", "", "News", "http://e/live/cnn"))
	require.Equal(t, domain.ContentLivestream, c.ContentType)
	require.NotNil(t, c.Live)
	assert.Equal(t, "CNN International", c.Live.ChannelName)
	assert.Equal(t, "News", c.Live.Category)
}

func TestClassify_seriesWinsOverMovieSignals(t *testing.T) {
	// SxxEyy in the name beats the movie-ish group and file extension.
	c := classify(entry("Show S01E01 (2022)", "", "Movies", "http://e/v.mp4"))
	assert.Equal(t, domain.ContentEpisode, c.ContentType)
}

func TestClassify_yearTokenPrecedence(t *testing.T) {
	// A channel named after a year classifies as a movie; callers rely on the
	// precedence being stable.
	c := classify(entry("Sports 2024", "", "Sports", "http://e/live"))
	assert.Equal(t, domain.ContentMovie, c.ContentType)
	assert.Equal(t, 2024, c.Movie.Year)
}

func TestCategorize_grouping(t *testing.T) {
	set := Categorize([]domain.PlaylistEntry{
		entry("Show A S01E01", "", "Series", "http://e/1"),
		entry("Show A S01E02", "", "Series", "http://e/2"),
		entry("Show B S02E01", "", "Series", "http://e/3"),
		entry("Movie (2021)", "", "Movies", "http://e/m.mp4"),
		entry("News 24/7", "", "News", "http://e/live"),
	})

	assert.Len(t, set.Livestreams, 1)
	assert.Len(t, set.Movies, 1)
	require.Len(t, set.SeriesGroups, 2)

	a := set.SeriesGroups["Show A"]
	require.NotNil(t, a)
	assert.Len(t, a.Episodes, 2)

	b := set.SeriesGroups["Show B"]
	require.NotNil(t, b)
	assert.Len(t, b.Episodes, 1)

	live, movies, series, episodes := set.Counts()
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, movies)
	assert.Equal(t, 2, series)
	assert.Equal(t, 3, episodes)
}

func TestCategorize_groupLogoFromFirstEpisode(t *testing.T) {
	first := entry("Show C S01E01", "", "Series", "http://e/1")
	first.TVGLogo = "http://e/logo1.png"
	second := entry("Show C S01E02", "", "Series", "http://e/2")
	second.TVGLogo = "http://e/logo2.png"

	set := Categorize([]domain.PlaylistEntry{first, second})
	g := set.SeriesGroups["Show C"]
	require.NotNil(t, g)
	assert.Equal(t, "http://e/logo1.png", g.Logo)
}

func TestNormalizeSeriesName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Show.Name", "Show Name"},
		{"Show_Name  Extra", "Show Name Extra"},
		{" - Show - ", "Show"},
		{"Show Name", "Show Name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSeriesName(tt.in), tt.in)
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "show name", NormalizeKey("Show.Name"))
	assert.Equal(t, NormalizeKey("SHOW NAME"), NormalizeKey("show_name"))
}

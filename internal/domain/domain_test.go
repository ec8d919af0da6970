package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceStatus(t *testing.T) {
	for _, s := range []SourceStatus{StatusIdle, StatusFetching, StatusParsing, StatusSuccess, StatusFailed} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, SourceStatus("BOGUS").IsValid())

	assert.True(t, StatusIdle.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusFetching.Terminal())
	assert.False(t, StatusParsing.Terminal())
}

func TestMetadataJSON(t *testing.T) {
	live := ClassifiedEntry{
		ContentType: ContentLivestream,
		Live:        &LiveMeta{ChannelName: "BBC One", Category: "UK"},
	}
	got, err := live.MetadataJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel_name":"BBC One","category":"UK"}`, got)

	movie := ClassifiedEntry{
		ContentType: ContentMovie,
		Movie:       &MovieMeta{Title: "Feature", Year: 2021},
	}
	got, err = movie.MetadataJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Feature","year":2021}`, got)

	episode := ClassifiedEntry{
		ContentType: ContentEpisode,
		Episode:     &EpisodeMeta{SeriesName: "Show", SeasonNumber: 2, EpisodeNumber: 5},
	}
	got, err = episode.MetadataJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"series_name":"Show","season_number":2,"episode_number":5}`, got)
}

func TestSyncResultString(t *testing.T) {
	r := SyncResult{Success: true, TotalEntries: 10, Livestreams: 6, Movies: 2, Series: 1, Episodes: 2}
	s := r.String()
	assert.Contains(t, s, "ok=true")
	assert.Contains(t, s, "entries=10")
	assert.Contains(t, s, "errs=0")
}

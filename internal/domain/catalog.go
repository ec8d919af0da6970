// Package domain holds the data model shared across the ingestion pipeline:
// raw playlist entries, classified entries, sync sources and catalog rows.
package domain

import (
	"encoding/json"
	"time"
)

// ContentType is the heuristic classification of one playlist entry.
type ContentType string

const (
	ContentLivestream ContentType = "livestream"
	ContentMovie      ContentType = "movie"
	ContentEpisode    ContentType = "episode"
)

// PlaylistEntry is one raw record from an M3U playlist (metadata line + URL).
// Immutable once created. ID is a freshly generated opaque id, not derived
// from content: re-parsing the same playlist yields different ids, so
// downstream dedup keys on semantic fields, never on ID.
type PlaylistEntry struct {
	ID              string `json:"id"`
	TVGID           string `json:"tvg_id"`
	TVGName         string `json:"tvg_name"`
	TVGLogo         string `json:"tvg_logo"`
	GroupTitle      string `json:"group_title"`
	DisplayName     string `json:"display_name"`
	URL             string `json:"url"`
	RawMetadataLine string `json:"raw_metadata_line"`
}

// ParseError records one skipped playlist line. Collected, never fatal.
type ParseError struct {
	LineNumber int    `json:"line_number"`
	RawLine    string `json:"raw_line"`
	Reason     string `json:"reason"`
}

// ParsedPlaylist is the output of one parse pass over a playlist body.
type ParsedPlaylist struct {
	SourceURL    string          `json:"source_url"`
	Entries      []PlaylistEntry `json:"entries"`
	ParsedAt     time.Time       `json:"parsed_at"`
	TotalEntries int             `json:"total_entries"`
	Errors       []ParseError    `json:"errors"`
}

// EpisodeMeta is the classification payload for an episode entry.
type EpisodeMeta struct {
	SeriesName    string `json:"series_name"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	EpisodeTitle  string `json:"episode_title,omitempty"`
}

// MovieMeta is the classification payload for a movie entry.
type MovieMeta struct {
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
	Genre string `json:"genre,omitempty"`
}

// LiveMeta is the classification payload for a livestream entry.
type LiveMeta struct {
	ChannelName string `json:"channel_name"`
	Category    string `json:"category"`
}

// ClassifiedEntry is a PlaylistEntry plus its content type and exactly one
// populated metadata payload matching that type.
type ClassifiedEntry struct {
	PlaylistEntry
	ContentType ContentType  `json:"content_type"`
	Episode     *EpisodeMeta `json:"episode,omitempty"`
	Movie       *MovieMeta   `json:"movie,omitempty"`
	Live        *LiveMeta    `json:"live,omitempty"`
}

// MetadataJSON renders the populated metadata payload as the JSON blob stored
// on the Channel row.
func (e ClassifiedEntry) MetadataJSON() (string, error) {
	var v any
	switch e.ContentType {
	case ContentEpisode:
		v = e.Episode
	case ContentMovie:
		v = e.Movie
	default:
		v = e.Live
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SeriesGroup collects the episodes of one series, keyed by normalized name.
// Logo and GroupTitle come from the first episode inserted into the group.
type SeriesGroup struct {
	SeriesName string            `json:"series_name"`
	Logo       string            `json:"logo"`
	GroupTitle string            `json:"group_title"`
	Episodes   []ClassifiedEntry `json:"episodes"`
}

// ClassifiedSet is the full categorizer output for one playlist.
// SeriesGroups iteration order is not deterministic; SeriesName is the
// deterministic ordering key when one is needed for display.
type ClassifiedSet struct {
	Livestreams  []ClassifiedEntry       `json:"livestreams"`
	Movies       []ClassifiedEntry       `json:"movies"`
	SeriesGroups map[string]*SeriesGroup `json:"series_groups"`
}

// Counts returns per-category totals (livestreams, movies, series, episodes).
func (s *ClassifiedSet) Counts() (live, movies, series, episodes int) {
	live = len(s.Livestreams)
	movies = len(s.Movies)
	series = len(s.SeriesGroups)
	for _, g := range s.SeriesGroups {
		episodes += len(g.Episodes)
	}
	return live, movies, series, episodes
}

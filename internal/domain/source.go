package domain

import (
	"fmt"
	"time"
)

// SourceStatus is the persisted sync state of one playlist source.
//
// IDLE → FETCHING → PARSING → SUCCESS | FAILED. Terminal states are
// re-entrant via a fresh sync request. A process crash mid-sync leaves the
// source stuck in FETCHING/PARSING until a manual re-sync.
type SourceStatus string

const (
	StatusIdle     SourceStatus = "IDLE"
	StatusFetching SourceStatus = "FETCHING"
	StatusParsing  SourceStatus = "PARSING"
	StatusSuccess  SourceStatus = "SUCCESS"
	StatusFailed   SourceStatus = "FAILED"
)

func (s SourceStatus) String() string { return string(s) }

// IsValid reports whether s is one of the defined states.
func (s SourceStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusFetching, StatusParsing, StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether a sync run over s has finished (or never started).
func (s SourceStatus) Terminal() bool {
	return s == StatusIdle || s == StatusSuccess || s == StatusFailed
}

// Source is a profile-scoped playlist URL tracked for periodic re-sync.
type Source struct {
	ID           string       `json:"id"`
	URL          string       `json:"url"`
	Name         string       `json:"name"`
	LastFetched  *time.Time   `json:"last_fetched,omitempty"`
	LastStatus   SourceStatus `json:"last_status"`
	TotalEntries int          `json:"total_entries"`
	ProfileID    string       `json:"profile_id"`
}

// Channel is a persisted catalog row for a livestream or movie entry.
type Channel struct {
	ID          string      `json:"id"`
	TVGID       string      `json:"tvg_id"`
	TVGName     string      `json:"tvg_name"`
	DisplayName string      `json:"display_name"`
	Logo        string      `json:"logo"`
	URL         string      `json:"url"`
	GroupTitle  string      `json:"group_title"`
	ContentType ContentType `json:"content_type"`
	Metadata    string      `json:"metadata"` // JSON blob, shape depends on ContentType
	ProfileID   string      `json:"profile_id"`
}

// Series is a persisted series row. (NormalizedName, ProfileID) is unique;
// re-sync must find-or-create, never duplicate.
type Series struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NormalizedName string `json:"normalized_name"`
	Logo           string `json:"logo"`
	GroupTitle     string `json:"group_title"`
	ProfileID      string `json:"profile_id"`
}

// Episode is a persisted episode row. (SeriesID, SeasonNumber, EpisodeNumber)
// is unique.
type Episode struct {
	ID            string `json:"id"`
	SeriesID      string `json:"series_id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	TVGName       string `json:"tvg_name"`
}

// SyncStatus is the polling view exposed at the sync trigger boundary.
type SyncStatus struct {
	Status       SourceStatus `json:"status"`
	LastFetched  *time.Time   `json:"last_fetched,omitempty"`
	TotalEntries int          `json:"total_entries"`
}

// SyncResult reports the outcome of one sync run.
type SyncResult struct {
	Success      bool          `json:"success"`
	SourceID     string        `json:"source_id"`
	TotalEntries int           `json:"total_entries"`
	Livestreams  int           `json:"livestreams"`
	Movies       int           `json:"movies"`
	Series       int           `json:"series"`
	Episodes     int           `json:"episodes"`
	Duration     time.Duration `json:"duration"`
	Errors       []string      `json:"errors,omitempty"`
}

func (r SyncResult) String() string {
	return fmt.Sprintf("ok=%v entries=%d live=%d movies=%d series=%d episodes=%d dur=%s errs=%d",
		r.Success, r.TotalEntries, r.Livestreams, r.Movies, r.Series, r.Episodes,
		r.Duration.Round(time.Millisecond), len(r.Errors))
}

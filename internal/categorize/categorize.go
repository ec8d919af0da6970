// Package categorize classifies playlist entries into livestreams, movies and
// series episodes using name/URL heuristics, and groups episodes by series.
// All functions are pure; there is no shared mutable state.
package categorize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/snapetech/m3ucat/internal/domain"
)

var (
	// seriesMarkerRe matches an SxxEyy marker anywhere in a name. Checked
	// before the Season/Episode word form.
	seriesMarkerRe = regexp.MustCompile(`(?i)S(\d{1,4})\s*E(\d{1,4})`)

	seasonWordRe  = regexp.MustCompile(`(?i)\bSeason\s*(\d{1,4})\b`)
	episodeWordRe = regexp.MustCompile(`(?i)\bEpisode\s*(\d{1,4})\b`)

	// yearTokenRe matches a 4-digit 19xx/20xx token. Note: a livestream whose
	// channel name carries a 4-digit number ("Sports 2024") will classify as
	// a movie; the heuristic's precedence is load-bearing and kept as-is.
	yearTokenRe = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	punctRe      = regexp.MustCompile(`[._]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// movieGroupKeywords mark a group-title as VOD content.
var movieGroupKeywords = []string{"movie", "film", "cinema", "vod"}

// videoExtensions mark a URL path (or a trailing name token) as a media file.
var videoExtensions = []string{".mp4", ".mkv", ".avi"}

// Categorize classifies entries in input order and groups episodes by
// normalized series name. Iteration order over the returned SeriesGroups map
// is not deterministic; SeriesName is the ordering key for display.
func Categorize(entries []domain.PlaylistEntry) *domain.ClassifiedSet {
	set := &domain.ClassifiedSet{
		SeriesGroups: make(map[string]*domain.SeriesGroup),
	}
	for _, e := range entries {
		c := classify(e)
		switch c.ContentType {
		case domain.ContentEpisode:
			appendEpisode(set, c)
		case domain.ContentMovie:
			set.Movies = append(set.Movies, c)
		default:
			set.Livestreams = append(set.Livestreams, c)
		}
	}
	return set
}

func classify(e domain.PlaylistEntry) domain.ClassifiedEntry {
	if meta, ok := matchSeries(e.DisplayName); ok {
		return domain.ClassifiedEntry{PlaylistEntry: e, ContentType: domain.ContentEpisode, Episode: meta}
	}
	if meta, ok := matchSeries(e.TVGName); ok {
		return domain.ClassifiedEntry{PlaylistEntry: e, ContentType: domain.ContentEpisode, Episode: meta}
	}
	if meta, ok := matchMovie(e); ok {
		return domain.ClassifiedEntry{PlaylistEntry: e, ContentType: domain.ContentMovie, Movie: meta}
	}
	return domain.ClassifiedEntry{
		PlaylistEntry: e,
		ContentType:   domain.ContentLivestream,
		Live:          &domain.LiveMeta{ChannelName: e.DisplayName, Category: e.GroupTitle},
	}
}

// matchSeries tries the SxxEyy marker first, then the "Season n ... Episode n"
// word form. First match wins.
func matchSeries(name string) (*domain.EpisodeMeta, bool) {
	if name == "" {
		return nil, false
	}
	if loc := seriesMarkerRe.FindStringSubmatchIndex(name); loc != nil {
		season, _ := strconv.Atoi(name[loc[2]:loc[3]])
		episode, _ := strconv.Atoi(name[loc[4]:loc[5]])
		return &domain.EpisodeMeta{
			SeriesName:    NormalizeSeriesName(name[:loc[0]]),
			SeasonNumber:  season,
			EpisodeNumber: episode,
			EpisodeTitle:  strings.TrimSpace(trimLeadingPunct(name[loc[1]:])),
		}, true
	}
	sm := seasonWordRe.FindStringSubmatchIndex(name)
	em := episodeWordRe.FindStringSubmatch(name)
	if sm != nil && em != nil {
		season, _ := strconv.Atoi(name[sm[2]:sm[3]])
		episode, _ := strconv.Atoi(em[1])
		return &domain.EpisodeMeta{
			SeriesName:    NormalizeSeriesName(name[:sm[0]]),
			SeasonNumber:  season,
			EpisodeNumber: episode,
		}, true
	}
	return nil, false
}

func matchMovie(e domain.PlaylistEntry) (*domain.MovieMeta, bool) {
	if !isMovie(e) {
		return nil, false
	}
	title, year := movieTitleYear(e.DisplayName)
	return &domain.MovieMeta{Title: title, Year: year}, true
}

func isMovie(e domain.PlaylistEntry) bool {
	group := strings.ToLower(e.GroupTitle)
	for _, kw := range movieGroupKeywords {
		if strings.Contains(group, kw) {
			return true
		}
	}
	if hasVideoExtension(e.URL) {
		return true
	}
	return yearTokenRe.MatchString(e.DisplayName)
}

func hasVideoExtension(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// movieTitleYear strips the year token and any trailing known video extension
// from a display name, then trims leading/trailing punctuation.
func movieTitleYear(name string) (string, int) {
	year := 0
	if m := yearTokenRe.FindString(name); m != "" {
		year, _ = strconv.Atoi(m)
		name = strings.Replace(name, m, "", 1)
	}
	for _, ext := range videoExtensions {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	return strings.Trim(name, " \t()[]-_."), year
}

// NormalizeSeriesName derives the series grouping key: dots and underscores
// become spaces, whitespace collapses, the result is trimmed.
func NormalizeSeriesName(name string) string {
	name = punctRe.ReplaceAllString(name, " ")
	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.Trim(name, " -")
}

// NormalizeKey lowercases a normalized series name for use as the unique
// (normalized_name, profile_id) store key.
func NormalizeKey(name string) string {
	return strings.ToLower(NormalizeSeriesName(name))
}

func trimLeadingPunct(s string) string {
	return strings.TrimLeft(s, " -_.")
}

// appendEpisode adds c to its series group, creating the group on first
// sight. Group logo and group-title come from the first inserted episode.
func appendEpisode(set *domain.ClassifiedSet, c domain.ClassifiedEntry) {
	key := c.Episode.SeriesName
	g, ok := set.SeriesGroups[key]
	if !ok {
		g = &domain.SeriesGroup{
			SeriesName: key,
			Logo:       c.TVGLogo,
			GroupTitle: c.GroupTitle,
		}
		set.SeriesGroups[key] = g
	}
	g.Episodes = append(g.Episodes, c)
}

package database

const schema = `
CREATE TABLE m3u_sources (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	name          TEXT NOT NULL,
	last_fetched  TIMESTAMP,
	last_status   TEXT NOT NULL DEFAULT 'IDLE',
	total_entries INTEGER NOT NULL DEFAULT 0,
	profile_id    TEXT NOT NULL,
	created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_sources_profile ON m3u_sources(profile_id);

CREATE TABLE channels (
	id           TEXT PRIMARY KEY,
	tvg_id       TEXT NOT NULL DEFAULT '',
	tvg_name     TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL,
	logo         TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	group_title  TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	profile_id   TEXT NOT NULL
);

CREATE INDEX idx_channels_profile ON channels(profile_id);
CREATE INDEX idx_channels_profile_type ON channels(profile_id, content_type);

CREATE TABLE series (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	logo            TEXT NOT NULL DEFAULT '',
	group_title     TEXT NOT NULL DEFAULT '',
	profile_id      TEXT NOT NULL,
	UNIQUE(normalized_name, profile_id)
);

CREATE INDEX idx_series_profile ON series(profile_id);

CREATE TABLE episodes (
	id             TEXT PRIMARY KEY,
	series_id      TEXT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
	season_number  INTEGER NOT NULL,
	episode_number INTEGER NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL,
	tvg_name       TEXT NOT NULL DEFAULT '',
	UNIQUE(series_id, season_number, episode_number)
);

CREATE INDEX idx_episodes_series ON episodes(series_id);
`

// migrations contains incremental schema changes applied in order from the
// current user_version. migrations[0] is empty because version 0 uses the
// base schema.
var migrations = []string{
	"",
}

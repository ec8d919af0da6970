package database

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/snapetech/m3ucat/internal/domain"
)

// EpisodeKey identifies an episode within one series.
type EpisodeKey struct {
	Season  int
	Episode int
}

// SeriesRepo persists series rows and their episodes.
type SeriesRepo struct {
	db  *DB
	log zerolog.Logger
}

func NewSeriesRepo(db *DB) *SeriesRepo {
	return &SeriesRepo{db: db, log: db.log.With().Str("repo", "series").Logger()}
}

// FindOrCreate returns the series row keyed by (normalizedName, profileID),
// creating it when absent. Re-sync never duplicates a series.
func (r *SeriesRepo) FindOrCreate(ctx context.Context, s domain.Series) (*domain.Series, error) {
	query, args, err := r.selectSeries().
		Where(sq.Eq{"normalized_name": s.NormalizedName, "profile_id": s.ProfileID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build series select")
	}
	existing, err := scanSeries(r.db.handler.QueryRowContext(ctx, query, args...).Scan)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "query series")
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	insert, args, err := r.db.squirrel.
		Insert("series").
		Columns("id", "name", "normalized_name", "logo", "group_title", "profile_id").
		Values(s.ID, s.Name, s.NormalizedName, s.Logo, s.GroupTitle, s.ProfileID).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build series insert")
	}
	if _, err := r.db.handler.ExecContext(ctx, insert, args...); err != nil {
		return nil, errors.Wrap(err, "insert series")
	}
	return &s, nil
}

// ExistingEpisodeKeys returns the (season, episode) pairs already stored for
// a series. Used to make bulk episode insertion idempotent.
func (r *SeriesRepo) ExistingEpisodeKeys(ctx context.Context, seriesID string) (map[EpisodeKey]struct{}, error) {
	query, args, err := r.db.squirrel.
		Select("season_number", "episode_number").
		From("episodes").
		Where(sq.Eq{"series_id": seriesID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build episode keys select")
	}
	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query episode keys")
	}
	defer rows.Close()

	keys := make(map[EpisodeKey]struct{})
	for rows.Next() {
		var k EpisodeKey
		if err := rows.Scan(&k.Season, &k.Episode); err != nil {
			return nil, errors.Wrap(err, "scan episode key")
		}
		keys[k] = struct{}{}
	}
	return keys, errors.Wrap(rows.Err(), "iterate episode keys")
}

// InsertEpisodes bulk-inserts episode rows in a single transaction. Callers
// must have filtered the batch against ExistingEpisodeKeys first.
func (r *SeriesRepo) InsertEpisodes(ctx context.Context, episodes []domain.Episode) error {
	if len(episodes) == 0 {
		return nil
	}
	builder := r.db.squirrel.
		Insert("episodes").
		Columns("id", "series_id", "season_number", "episode_number", "title", "url", "tvg_name")
	for _, ep := range episodes {
		id := ep.ID
		if id == "" {
			id = uuid.NewString()
		}
		builder = builder.Values(id, ep.SeriesID, ep.SeasonNumber, ep.EpisodeNumber, ep.Title, ep.URL, ep.TVGName)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(err, "build episode insert")
	}

	tx, err := r.db.handler.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin episode insert")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "insert episodes")
	}
	return errors.Wrap(tx.Commit(), "commit episode insert")
}

// ListByProfile returns all series rows for one profile ordered by name.
func (r *SeriesRepo) ListByProfile(ctx context.Context, profileID string) ([]domain.Series, error) {
	query, args, err := r.selectSeries().
		Where(sq.Eq{"profile_id": profileID}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build series list")
	}
	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query series list")
	}
	defer rows.Close()

	var out []domain.Series
	for rows.Next() {
		s, err := scanSeries(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scan series")
		}
		out = append(out, *s)
	}
	return out, errors.Wrap(rows.Err(), "iterate series")
}

// EpisodesBySeries returns the stored episodes of one series ordered by
// season then episode number.
func (r *SeriesRepo) EpisodesBySeries(ctx context.Context, seriesID string) ([]domain.Episode, error) {
	query, args, err := r.db.squirrel.
		Select("id", "series_id", "season_number", "episode_number", "title", "url", "tvg_name").
		From("episodes").
		Where(sq.Eq{"series_id": seriesID}).
		OrderBy("season_number", "episode_number").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build episode list")
	}
	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query episodes")
	}
	defer rows.Close()

	var out []domain.Episode
	for rows.Next() {
		var ep domain.Episode
		if err := rows.Scan(&ep.ID, &ep.SeriesID, &ep.SeasonNumber, &ep.EpisodeNumber, &ep.Title, &ep.URL, &ep.TVGName); err != nil {
			return nil, errors.Wrap(err, "scan episode")
		}
		out = append(out, ep)
	}
	return out, errors.Wrap(rows.Err(), "iterate episodes")
}

func (r *SeriesRepo) selectSeries() sq.SelectBuilder {
	return r.db.squirrel.
		Select("id", "name", "normalized_name", "logo", "group_title", "profile_id").
		From("series")
}

func scanSeries(scan func(dest ...any) error) (*domain.Series, error) {
	var s domain.Series
	if err := scan(&s.ID, &s.Name, &s.NormalizedName, &s.Logo, &s.GroupTitle, &s.ProfileID); err != nil {
		return nil, err
	}
	return &s, nil
}

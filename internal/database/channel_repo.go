package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/snapetech/m3ucat/internal/domain"
)

// ChannelRepo persists catalog channel rows (livestreams and movies).
type ChannelRepo struct {
	db  *DB
	log zerolog.Logger
}

func NewChannelRepo(db *DB) *ChannelRepo {
	return &ChannelRepo{db: db, log: db.log.With().Str("repo", "channel").Logger()}
}

// InsertBatch writes one chunk of channel rows in a single transaction.
func (r *ChannelRepo) InsertBatch(ctx context.Context, channels []domain.Channel) error {
	if len(channels) == 0 {
		return nil
	}
	builder := r.db.squirrel.
		Insert("channels").
		Columns("id", "tvg_id", "tvg_name", "display_name", "logo", "url", "group_title", "content_type", "metadata", "profile_id")
	for _, c := range channels {
		builder = builder.Values(c.ID, c.TVGID, c.TVGName, c.DisplayName, c.Logo, c.URL, c.GroupTitle, string(c.ContentType), c.Metadata, c.ProfileID)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(err, "build channel insert")
	}

	tx, err := r.db.handler.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin channel insert")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "insert channels")
	}
	return errors.Wrap(tx.Commit(), "commit channel insert")
}

// CountByProfile returns the number of channel rows for one profile.
func (r *ChannelRepo) CountByProfile(ctx context.Context, profileID string) (int, error) {
	query, args, err := r.db.squirrel.
		Select("COUNT(*)").From("channels").Where(sq.Eq{"profile_id": profileID}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build channel count")
	}
	var n int
	if err := r.db.handler.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count channels")
	}
	return n, nil
}

// ListByProfile returns channel rows for one profile, optionally filtered by
// content type (empty = all), ordered by display name.
func (r *ChannelRepo) ListByProfile(ctx context.Context, profileID string, contentType domain.ContentType) ([]domain.Channel, error) {
	builder := r.db.squirrel.
		Select("id", "tvg_id", "tvg_name", "display_name", "logo", "url", "group_title", "content_type", "metadata", "profile_id").
		From("channels").
		Where(sq.Eq{"profile_id": profileID}).
		OrderBy("display_name")
	if contentType != "" {
		builder = builder.Where(sq.Eq{"content_type": string(contentType)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build channel list")
	}
	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query channels")
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		var c domain.Channel
		var ct string
		if err := rows.Scan(&c.ID, &c.TVGID, &c.TVGName, &c.DisplayName, &c.Logo, &c.URL, &c.GroupTitle, &ct, &c.Metadata, &c.ProfileID); err != nil {
			return nil, errors.Wrap(err, "scan channel")
		}
		c.ContentType = domain.ContentType(ct)
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate channels")
}

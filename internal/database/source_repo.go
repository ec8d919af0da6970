package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/snapetech/m3ucat/internal/domain"
)

// SourceRepo persists playlist sources and their sync state.
type SourceRepo struct {
	db  *DB
	log zerolog.Logger
}

func NewSourceRepo(db *DB) *SourceRepo {
	return &SourceRepo{db: db, log: db.log.With().Str("repo", "source").Logger()}
}

// Insert stores a new source. An empty ID is replaced with a fresh uuid; an
// empty status defaults to IDLE.
func (r *SourceRepo) Insert(ctx context.Context, s *domain.Source) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.LastStatus == "" {
		s.LastStatus = domain.StatusIdle
	}
	query, args, err := r.db.squirrel.
		Insert("m3u_sources").
		Columns("id", "url", "name", "last_fetched", "last_status", "total_entries", "profile_id").
		Values(s.ID, s.URL, s.Name, s.LastFetched, string(s.LastStatus), s.TotalEntries, s.ProfileID).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build source insert")
	}
	_, err = r.db.handler.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "insert source")
}

// Get returns the source with the given id, or ErrNotFound.
func (r *SourceRepo) Get(ctx context.Context, id string) (*domain.Source, error) {
	query, args, err := r.selectSources().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build source select")
	}
	row := r.db.handler.QueryRowContext(ctx, query, args...)
	s, err := scanSource(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan source")
	}
	return s, nil
}

// List returns all sources ordered by name.
func (r *SourceRepo) List(ctx context.Context) ([]domain.Source, error) {
	query, args, err := r.selectSources().OrderBy("name").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build source list")
	}
	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query sources")
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		s, err := scanSource(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scan source")
		}
		out = append(out, *s)
	}
	return out, errors.Wrap(rows.Err(), "iterate sources")
}

// Delete removes a source. Deleting a source mid-sync is a supported
// concurrent event; the orchestrator detects it between chunk writes.
func (r *SourceRepo) Delete(ctx context.Context, id string) error {
	query, args, err := r.db.squirrel.Delete("m3u_sources").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "build source delete")
	}
	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "delete source")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether the source row is still present.
func (r *SourceRepo) Exists(ctx context.Context, id string) (bool, error) {
	query, args, err := r.db.squirrel.
		Select("1").From("m3u_sources").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build source exists")
	}
	var one int
	err = r.db.handler.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "query source exists")
	}
	return true, nil
}

// SetStatus transitions the persisted sync state.
func (r *SourceRepo) SetStatus(ctx context.Context, id string, status domain.SourceStatus) error {
	query, args, err := r.db.squirrel.
		Update("m3u_sources").
		Set("last_status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build status update")
	}
	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSynced records a successful run: status SUCCESS, entry total and fetch
// timestamp in one write.
func (r *SourceRepo) MarkSynced(ctx context.Context, id string, totalEntries int, fetchedAt time.Time) error {
	query, args, err := r.db.squirrel.
		Update("m3u_sources").
		Set("last_status", string(domain.StatusSuccess)).
		Set("total_entries", totalEntries).
		Set("last_fetched", fetchedAt.UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build synced update")
	}
	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update synced")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SourceRepo) selectSources() sq.SelectBuilder {
	return r.db.squirrel.
		Select("id", "url", "name", "last_fetched", "last_status", "total_entries", "profile_id").
		From("m3u_sources")
}

func scanSource(scan func(dest ...any) error) (*domain.Source, error) {
	var s domain.Source
	var lastFetched sql.NullTime
	var status string
	if err := scan(&s.ID, &s.URL, &s.Name, &lastFetched, &status, &s.TotalEntries, &s.ProfileID); err != nil {
		return nil, err
	}
	if lastFetched.Valid {
		t := lastFetched.Time
		s.LastFetched = &t
	}
	s.LastStatus = domain.SourceStatus(status)
	return &s, nil
}

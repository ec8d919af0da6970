// Package database is the catalog store: sqlite-backed persistence for
// playlist sources, channels, series and episodes.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("database: not found")

// DB wraps the sqlite handle and the statement builder shared by all repos.
type DB struct {
	handler  *sql.DB
	log      zerolog.Logger
	lock     sync.RWMutex
	squirrel sq.StatementBuilderType
}

// NewDB opens (creating if needed) the catalog database under dir and
// migrates the schema.
func NewDB(dir string, log zerolog.Logger) (*DB, error) {
	dsn := filepath.Join(dir, "m3ucat.db") + "?_pragma=busy_timeout%3d1000&_pragma=foreign_keys%3d1"
	return open(dsn, true, log)
}

// NewInMemory opens a private in-memory catalog database. Used by tests.
func NewInMemory(log zerolog.Logger) (*DB, error) {
	return open("file::memory:?_pragma=foreign_keys%3d1", false, log)
}

func open(dsn string, wal bool, log zerolog.Logger) (*DB, error) {
	db := &DB{
		log:      log.With().Str("module", "database").Logger(),
		squirrel: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}

	var err error
	db.handler, err = sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open database")
	}
	// An in-memory database vanishes when its sole connection closes; a file
	// database gains nothing from extra write connections under WAL.
	db.handler.SetMaxOpenConns(1)

	if wal {
		if _, err = db.handler.Exec(`PRAGMA journal_mode = wal;`); err != nil {
			return nil, errors.Wrap(err, "unable to enable WAL mode")
		}
	}

	if err := db.migrate(); err != nil {
		db.handler.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	return db, nil
}

// migrate creates or upgrades the schema using PRAGMA user_version.
func (db *DB) migrate() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	var version int
	if err := db.handler.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "failed to query schema version")
	}

	if version == len(migrations) {
		return nil
	}
	if version > len(migrations) {
		return errors.Errorf("database schema version (%d) is newer than supported (%d)", version, len(migrations))
	}

	db.log.Info().Msgf("upgrading database schema from version %d to %d", version, len(migrations))

	tx, err := db.handler.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if version == 0 {
		if _, err := tx.Exec(schema); err != nil {
			return errors.Wrap(err, "failed to initialize schema")
		}
	} else {
		for i := version; i < len(migrations); i++ {
			if migrations[i] == "" {
				continue
			}
			if _, err := tx.Exec(migrations[i]); err != nil {
				return errors.Wrapf(err, "failed to execute migration #%d", i)
			}
		}
	}

	if _, err = tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return errors.Wrap(err, "failed to bump schema version")
	}

	return tx.Commit()
}

// Close releases the database handle.
func (db *DB) Close() error {
	if _, err := db.handler.Exec(`PRAGMA optimize;`); err != nil {
		return errors.Wrap(err, "query planner optimization")
	}
	return db.handler.Close()
}

// Ping checks that the connection is alive.
func (db *DB) Ping() error {
	return db.handler.Ping()
}

// ReplaceProfileCatalog deletes all channel rows and all series rows (episodes
// cascade) for profileID within a single transaction. A crash between the
// deletes and the commit leaves the previous catalog intact.
func (db *DB) ReplaceProfileCatalog(ctx context.Context, profileID string) error {
	tx, err := db.handler.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin replace transaction")
	}
	defer tx.Rollback()

	delChannels, args, err := db.squirrel.Delete("channels").Where(sq.Eq{"profile_id": profileID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "build channel delete")
	}
	if _, err := tx.ExecContext(ctx, delChannels, args...); err != nil {
		return errors.Wrap(err, "delete channels")
	}

	delSeries, args, err := db.squirrel.Delete("series").Where(sq.Eq{"profile_id": profileID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "build series delete")
	}
	if _, err := tx.ExecContext(ctx, delSeries, args...); err != nil {
		return errors.Wrap(err, "delete series")
	}

	return errors.Wrap(tx.Commit(), "commit replace transaction")
}

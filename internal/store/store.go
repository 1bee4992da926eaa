// Package store persists users, their artists, found concerts, sent
// notifications and scheduled searches in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/jfmyers9/encore/internal/store/migrations"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store manages the encore database.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// Open opens (creating if needed) the database at path and applies all
// pending migrations. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps in-memory databases consistent and
	// serializes writers for file-based ones.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return fn()
}

// MigrateUp applies all pending migrations.
func (s *Store) MigrateUp() error {
	return withGoose(func() error {
		if err := goose.Up(s.db, "."); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back the most recent migration.
func (s *Store) MigrateDown() error {
	return withGoose(func() error {
		if err := goose.Down(s.db, "."); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return nil
	})
}

// SchemaVersion returns the current migration version.
func (s *Store) SchemaVersion() (int64, error) {
	var version int64
	err := withGoose(func() error {
		v, err := goose.GetDBVersion(s.db)
		version = v
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Stats holds row counts of the main tables.
type Stats struct {
	Users         int
	Artists       int
	Concerts      int
	Notifications int
	Schedules     int
}

// Stats counts rows in every table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"users", &st.Users},
		{"user_artists", &st.Artists},
		{"concerts", &st.Concerts},
		{"notifications_sent", &st.Notifications},
		{"scheduled_searches", &st.Schedules},
	}
	for _, c := range counts {
		query, args, err := s.sb.Select("COUNT(*)").From(c.table).ToSql()
		if err != nil {
			return st, err
		}
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(c.dst); err != nil {
			return st, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return st, nil
}

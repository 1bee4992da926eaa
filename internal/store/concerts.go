package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var concertColumns = []string{
	"id", "artist", "name", "venue", "city", "country", "country_code",
	"date", "time", "url", "source", "external_id", "created_at",
}

// SaveConcert inserts c unless a concert with the same artist, venue, city,
// date and source already exists. Artist names compare case-insensitively. It sets c.ID in both cases and reports
// whether a new row was written.
func (s *Store) SaveConcert(ctx context.Context, c *Concert) (bool, error) {
	if c.Artist == "" || c.Date == "" || c.Source == "" {
		return false, fmt.Errorf("concert requires artist, date and source")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO concerts
			(artist, name, venue, city, country, country_code, date, time, url, source, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Artist, c.Name, c.Venue, c.City, c.Country, c.CountryCode, c.Date, c.Time, c.URL, c.Source, c.ExternalID)
	if err != nil {
		return false, fmt.Errorf("failed to save concert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("failed to get concert id: %w", err)
		}
		c.ID = id
		return true, nil
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM concerts
		WHERE artist = ? COLLATE NOCASE AND venue = ? AND city = ? AND date = ? AND source = ?
	`, c.Artist, c.Venue, c.City, c.Date, c.Source).Scan(&c.ID)
	if err != nil {
		return false, fmt.Errorf("failed to look up existing concert: %w", err)
	}
	return false, nil
}

// ConcertFilter narrows ListConcerts. Zero fields are ignored.
type ConcertFilter struct {
	Artist  string // case-insensitive exact match
	Country string // matches country code or name, case-insensitive
	Source  string
	From    string // inclusive YYYY-MM-DD
	To      string // inclusive YYYY-MM-DD
	Limit   uint64
}

// ListConcerts returns stored concerts ordered by date and artist.
func (s *Store) ListConcerts(ctx context.Context, f ConcertFilter) ([]Concert, error) {
	b := s.sb.Select(concertColumns...).From("concerts").OrderBy("date", "artist COLLATE NOCASE", "id")
	if f.Artist != "" {
		b = b.Where("artist = ? COLLATE NOCASE", f.Artist)
	}
	if f.Country != "" {
		b = b.Where(sq.Or{
			sq.Expr("country_code = ? COLLATE NOCASE", f.Country),
			sq.Expr("country = ? COLLATE NOCASE", f.Country),
		})
	}
	if f.Source != "" {
		b = b.Where(sq.Eq{"source": f.Source})
	}
	if f.From != "" {
		b = b.Where(sq.GtOrEq{"date": f.From})
	}
	if f.To != "" {
		b = b.Where(sq.LtOrEq{"date": f.To})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query concerts: %w", err)
	}
	defer rows.Close()
	return scanConcerts(rows)
}

// PruneConcertsBefore deletes concerts dated before date (YYYY-MM-DD) and
// returns how many were removed.
func (s *Store) PruneConcertsBefore(ctx context.Context, date string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM concerts WHERE date < ?", date)
	if err != nil {
		return 0, fmt.Errorf("failed to prune concerts: %w", err)
	}
	return result.RowsAffected()
}

func scanConcerts(rows *sql.Rows) ([]Concert, error) {
	var concerts []Concert
	for rows.Next() {
		var c Concert
		var created int64
		if err := rows.Scan(&c.ID, &c.Artist, &c.Name, &c.Venue, &c.City, &c.Country, &c.CountryCode,
			&c.Date, &c.Time, &c.URL, &c.Source, &c.ExternalID, &created); err != nil {
			return nil, fmt.Errorf("failed to scan concert: %w", err)
		}
		c.CreatedAt = unixTime(created)
		concerts = append(concerts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating concerts: %w", err)
	}
	return concerts, nil
}

// prefixed qualifies columns with a table alias.
func prefixed(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

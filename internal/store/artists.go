package store

import (
	"context"
	"fmt"
	"strings"
)

// AddArtist adds name to the user's artists. It reports false when the user
// already follows the artist; a newly known mbid is still recorded then.
func (s *Store) AddArtist(ctx context.Context, userID int64, name, mbid, source string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("artist name is required")
	}
	if source == "" {
		source = "manual"
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_artists (user_id, artist_name, mbid, source)
		VALUES (?, ?, ?, ?)
	`, userID, name, mbid, source)
	if err != nil {
		return false, fmt.Errorf("failed to add artist: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	if mbid != "" {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE user_artists SET mbid = ?
			WHERE user_id = ? AND artist_name = ? AND mbid = ''
		`, mbid, userID, name); err != nil {
			return false, fmt.Errorf("failed to update artist mbid: %w", err)
		}
	}
	return false, nil
}

// RemoveArtist removes an artist from the user's list.
func (s *Store) RemoveArtist(ctx context.Context, userID int64, name string) error {
	return s.execOne(ctx, "remove artist",
		"DELETE FROM user_artists WHERE user_id = ? AND artist_name = ?", userID, strings.TrimSpace(name))
}

// SetArtistMBID records the MusicBrainz id of a followed artist.
func (s *Store) SetArtistMBID(ctx context.Context, userID int64, name, mbid string) error {
	return s.execOne(ctx, "set artist mbid",
		"UPDATE user_artists SET mbid = ? WHERE user_id = ? AND artist_name = ?", mbid, userID, name)
}

// ListArtists returns the user's artists sorted by name.
func (s *Store) ListArtists(ctx context.Context, userID int64) ([]UserArtist, error) {
	query, args, err := s.sb.
		Select("id", "user_id", "artist_name", "mbid", "source", "added_at").
		From("user_artists").
		Where("user_id = ?", userID).
		OrderBy("artist_name COLLATE NOCASE").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []UserArtist
	for rows.Next() {
		var a UserArtist
		var added int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.MBID, &a.Source, &added); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		a.AddedAt = unixTime(added)
		artists = append(artists, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artists: %w", err)
	}
	return artists, nil
}

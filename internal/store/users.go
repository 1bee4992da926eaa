package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var userColumns = []string{"id", "chat_id", "username", "country_filter", "notifications_enabled", "created_at"}

// UpsertUser creates the user identified by ChatID, or updates the username
// of an existing one, and returns its id.
func (s *Store) UpsertUser(ctx context.Context, u User) (int64, error) {
	query := `
		INSERT INTO users (chat_id, username, country_filter, notifications_enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET username = excluded.username
	`
	if _, err := s.db.ExecContext(ctx, query, u.ChatID, u.Username, u.CountryFilter, u.NotificationsEnabled); err != nil {
		return 0, fmt.Errorf("failed to upsert user: %w", err)
	}

	existing, err := s.GetUserByChatID(ctx, u.ChatID)
	if err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByChatID returns the user with the given chat id.
func (s *Store) GetUserByChatID(ctx context.Context, chatID int64) (*User, error) {
	return s.getUser(ctx, "chat_id", chatID)
}

func (s *Store) getUser(ctx context.Context, column string, value int64) (*User, error) {
	query, args, err := s.sb.Select(userColumns...).From("users").Where(column+" = ?", value).ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s=%d: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	query, args, err := s.sb.Select(userColumns...).From("users").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// DeleteUser removes a user together with their artists, notifications and
// scheduled searches.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete user", "DELETE FROM users WHERE id = ?", id)
}

// SetCountryFilter changes the country concerts are filtered by.
func (s *Store) SetCountryFilter(ctx context.Context, id int64, country string) error {
	return s.execOne(ctx, "set country filter", "UPDATE users SET country_filter = ? WHERE id = ?", country, id)
}

// SetNotificationsEnabled turns notifications for a user on or off.
func (s *Store) SetNotificationsEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.execOne(ctx, "set notifications", "UPDATE users SET notifications_enabled = ? WHERE id = ?", enabled, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.ChatID, &u.Username, &u.CountryFilter, &u.NotificationsEnabled, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = unixTime(created)
	return &u, nil
}

// execOne runs a statement that must affect exactly one row.
func (s *Store) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

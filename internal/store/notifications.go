package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// UnnotifiedConcerts returns the concerts among ids that have not yet been
// sent to the user.
func (s *Store) UnnotifiedConcerts(ctx context.Context, userID int64, ids []int64) ([]Concert, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	sent := s.sb.Select("1").From("notifications_sent n").
		Where("n.concert_id = c.id").
		Where(sq.Eq{"n.user_id": userID})
	sentSQL, sentArgs, err := sent.ToSql()
	if err != nil {
		return nil, err
	}

	query, args, err := s.sb.Select(prefixed("c", concertColumns)...).
		From("concerts c").
		Where(sq.Eq{"c.id": ids}).
		Where("NOT EXISTS ("+sentSQL+")", sentArgs...).
		OrderBy("c.date", "c.artist COLLATE NOCASE", "c.id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unnotified concerts: %w", err)
	}
	defer rows.Close()
	return scanConcerts(rows)
}

// RecordNotifications marks concerts as sent to the user. Already recorded
// pairs are left untouched.
func (s *Store) RecordNotifications(ctx context.Context, userID int64, concertIDs []int64) error {
	if len(concertIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO notifications_sent (user_id, concert_id) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range concertIDs {
		if _, err := stmt.ExecContext(ctx, userID, id); err != nil {
			return fmt.Errorf("failed to record notification for concert %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

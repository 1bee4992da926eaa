package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var scheduleColumns = []string{
	"id", "user_id", "artist_name", "interval_seconds", "last_run", "next_run", "enabled", "created_at",
}

// AddSchedule creates a scheduled search that is due immediately. An empty
// artist searches every artist the user follows.
func (s *Store) AddSchedule(ctx context.Context, userID int64, artist string, interval time.Duration) (int64, error) {
	if interval < time.Minute {
		return 0, fmt.Errorf("schedule interval must be at least a minute, got %s", interval)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_searches (user_id, artist_name, interval_seconds, next_run)
		VALUES (?, ?, ?, 0)
	`, userID, artist, int64(interval/time.Second))
	if err != nil {
		return 0, fmt.Errorf("failed to add schedule: %w", err)
	}
	return result.LastInsertId()
}

// ListSchedules returns all schedules, or only the user's when userID is
// non-zero.
func (s *Store) ListSchedules(ctx context.Context, userID int64) ([]ScheduledSearch, error) {
	b := s.sb.Select(scheduleColumns...).From("scheduled_searches").OrderBy("id")
	if userID != 0 {
		b = b.Where(sq.Eq{"user_id": userID})
	}
	return s.querySchedules(ctx, b)
}

// DueSchedules returns enabled schedules whose next run is at or before now.
func (s *Store) DueSchedules(ctx context.Context, now time.Time) ([]ScheduledSearch, error) {
	b := s.sb.Select(scheduleColumns...).From("scheduled_searches").
		Where(sq.Eq{"enabled": true}).
		Where(sq.LtOrEq{"next_run": now.Unix()}).
		OrderBy("next_run", "id")
	return s.querySchedules(ctx, b)
}

// MarkScheduleRun records a run at ranAt and schedules the next one one
// interval later.
func (s *Store) MarkScheduleRun(ctx context.Context, id int64, ranAt time.Time) error {
	return s.execOne(ctx, "mark schedule run", `
		UPDATE scheduled_searches
		SET last_run = ?, next_run = ? + interval_seconds
		WHERE id = ?
	`, ranAt.Unix(), ranAt.Unix(), id)
}

// SetScheduleEnabled enables or disables a schedule.
func (s *Store) SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.execOne(ctx, "set schedule enabled",
		"UPDATE scheduled_searches SET enabled = ? WHERE id = ?", enabled, id)
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete schedule", "DELETE FROM scheduled_searches WHERE id = ?", id)
}

// ForceAllDue makes every enabled schedule due now.
func (s *Store) ForceAllDue(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "UPDATE scheduled_searches SET next_run = 0 WHERE enabled = 1")
	if err != nil {
		return 0, fmt.Errorf("failed to force schedules: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) querySchedules(ctx context.Context, b sq.SelectBuilder) ([]ScheduledSearch, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []ScheduledSearch
	for rows.Next() {
		var ss ScheduledSearch
		var interval, lastRun, nextRun, created int64
		if err := rows.Scan(&ss.ID, &ss.UserID, &ss.ArtistName, &interval, &lastRun, &nextRun, &ss.Enabled, &created); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		ss.Interval = time.Duration(interval) * time.Second
		ss.LastRun = unixTime(lastRun)
		ss.NextRun = unixTime(nextRun)
		ss.CreatedAt = unixTime(created)
		schedules = append(schedules, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return schedules, nil
}

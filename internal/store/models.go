package store

import (
	"strings"
	"time"
)

// User is a person receiving concert notifications.
type User struct {
	ID                   int64
	ChatID               int64  // Telegram chat id, unique per user
	Username             string
	CountryFilter        string // ISO2 code or country name, empty for no filter
	NotificationsEnabled bool
	CreatedAt            time.Time
}

// UserArtist is an artist followed by a user.
type UserArtist struct {
	ID      int64
	UserID  int64
	Name    string
	MBID    string
	Source  string // manual, lastfm, spotify, muspy
	AddedAt time.Time
}

// Concert is a single show found by a search service.
type Concert struct {
	ID          int64
	Artist      string
	Name        string
	Venue       string
	City        string
	Country     string
	CountryCode string
	Date        string // YYYY-MM-DD, local to the venue
	Time        string // HH:MM, may be empty
	URL         string
	Source      string
	ExternalID  string
	CreatedAt   time.Time
}

// Key identifies a concert the same way the concerts table's unique
// constraint does.
func (c Concert) Key() string {
	return strings.Join([]string{strings.ToLower(c.Artist), c.Venue, c.City, c.Date, c.Source}, "\x1f")
}

// ScheduledSearch re-runs a search for a user at a fixed interval.
type ScheduledSearch struct {
	ID         int64
	UserID     int64
	ArtistName string // empty means every artist the user follows
	Interval   time.Duration
	LastRun    time.Time
	NextRun    time.Time
	Enabled    bool
	CreatedAt  time.Time
}

// unixTime converts a stored unix timestamp, mapping 0 to the zero time.
func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

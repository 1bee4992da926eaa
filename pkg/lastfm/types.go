package lastfm

import (
	"time"
)

// Token represents an authentication token from auth.getToken.
type Token struct {
	Token string // The authentication token
}

// Session represents an authenticated session from auth.getSession.
type Session struct {
	Key        string // Session key for authenticated requests
	Username   string // Last.fm username
	Subscriber bool   // Whether user is a subscriber
}

// Artist is an entry of a user's top artists chart.
type Artist struct {
	Name      string
	MBID      string // MusicBrainz identifier, empty when Last.fm has none
	PlayCount int
	URL       string
}

// LovedTrack is an entry of a user's loved tracks.
type LovedTrack struct {
	Name       string
	MBID       string
	Artist     string
	ArtistMBID string
	LovedAt    time.Time
}

// Periods accepted by user.getTopArtists.
const (
	PeriodOverall = "overall"
	Period7Day    = "7day"
	Period1Month  = "1month"
	Period3Month  = "3month"
	Period6Month  = "6month"
	Period12Month = "12month"
)

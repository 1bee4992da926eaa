// Package artistsync imports followed artists from Last.fm and Spotify and
// mirrors them to Muspy.
package artistsync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/store"
)

// Artist sources recorded in the store.
const (
	SourceLastFM  = "lastfm"
	SourceSpotify = "spotify"
)

// ArtistStore is the part of the store used for syncing.
type ArtistStore interface {
	AddArtist(ctx context.Context, userID int64, name, mbid, source string) (bool, error)
	ListArtists(ctx context.Context, userID int64) ([]store.UserArtist, error)
	SetArtistMBID(ctx context.Context, userID int64, name, mbid string) error
}

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Added    int
	Existing int
}

// Syncer imports and syncs a user's artists.
type Syncer struct {
	store  ArtistStore
	logger zerolog.Logger
}

// New creates a Syncer.
func New(s ArtistStore, logger zerolog.Logger) *Syncer {
	return &Syncer{
		store:  s,
		logger: logger.With().Str("component", "artistsync").Logger(),
	}
}

func (s *Syncer) add(ctx context.Context, userID int64, name, mbid, source string, result *ImportResult) error {
	added, err := s.store.AddArtist(ctx, userID, name, mbid, source)
	if err != nil {
		return err
	}
	if added {
		result.Added++
	} else {
		result.Existing++
	}
	return nil
}

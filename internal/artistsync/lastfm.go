package artistsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfmyers9/encore/pkg/lastfm"
)

// LastFMLibrary is the part of the Last.fm user service used for imports.
type LastFMLibrary interface {
	TopArtists(ctx context.Context, user, period string, limit int) ([]lastfm.Artist, error)
	LovedTracks(ctx context.Context, user string, limit int) ([]lastfm.LovedTrack, error)
}

// ImportLastFM adds the Last.fm user's top artists to the user's list. With
// loved set, the artists of the user's loved tracks are imported instead.
func (s *Syncer) ImportLastFM(ctx context.Context, userID int64, lib LastFMLibrary, lastfmUser string, limit int, loved bool) (ImportResult, error) {
	var result ImportResult

	type candidate struct{ name, mbid string }
	var candidates []candidate

	if loved {
		tracks, err := lib.LovedTracks(ctx, lastfmUser, limit)
		if err != nil {
			return result, fmt.Errorf("failed to fetch loved tracks: %w", err)
		}
		seen := make(map[string]bool)
		for _, t := range tracks {
			key := strings.ToLower(t.Artist)
			if t.Artist == "" || seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, candidate{t.Artist, t.ArtistMBID})
		}
	} else {
		artists, err := lib.TopArtists(ctx, lastfmUser, lastfm.PeriodOverall, limit)
		if err != nil {
			return result, fmt.Errorf("failed to fetch top artists: %w", err)
		}
		for _, a := range artists {
			candidates = append(candidates, candidate{a.Name, a.MBID})
		}
	}

	for _, c := range candidates {
		if err := s.add(ctx, userID, c.name, c.mbid, SourceLastFM, &result); err != nil {
			return result, err
		}
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("lastfm_user", lastfmUser).
		Bool("loved", loved).
		Int("added", result.Added).
		Int("existing", result.Existing).
		Msg("imported artists from Last.fm")
	return result, nil
}

package artistsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/jfmyers9/encore/internal/store"
	"github.com/jfmyers9/encore/pkg/musicbrainz"
	"github.com/jfmyers9/encore/pkg/muspy"
)

// muspyWorkers bounds concurrent Muspy follow requests.
const muspyWorkers = 3

// MuspyFollower is the part of the Muspy client used for syncing.
type MuspyFollower interface {
	Artists(ctx context.Context) ([]muspy.Artist, error)
	Follow(ctx context.Context, mbid string) error
}

// ArtistSearcher resolves artist names to MusicBrainz ids.
type ArtistSearcher interface {
	SearchArtist(ctx context.Context, name string) (*musicbrainz.Artist, error)
}

// SyncResult counts the outcome of a Muspy sync.
type SyncResult struct {
	Followed int // newly followed
	Skipped  int // already followed
	Failed   int // no MBID found or follow failed
}

// SyncMuspy follows every artist of the user that the Muspy account does not
// follow yet. Missing MBIDs are looked up on MusicBrainz and saved.
func (s *Syncer) SyncMuspy(ctx context.Context, userID int64, m MuspyFollower, mb ArtistSearcher) (SyncResult, error) {
	artists, err := s.store.ListArtists(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}
	following, err := m.Artists(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to list muspy artists: %w", err)
	}

	followed := make(map[string]bool, len(following))
	for _, a := range following {
		followed[strings.ToLower(a.MBID)] = true
	}

	var nFollowed, nSkipped, nFailed atomic.Int64
	p := pool.New().WithMaxGoroutines(muspyWorkers)
	for _, a := range artists {
		p.Go(func() {
			switch s.syncArtist(ctx, userID, a, followed, m, mb) {
			case syncFollowed:
				nFollowed.Add(1)
			case syncSkipped:
				nSkipped.Add(1)
			default:
				nFailed.Add(1)
			}
		})
	}
	p.Wait()

	result := SyncResult{
		Followed: int(nFollowed.Load()),
		Skipped:  int(nSkipped.Load()),
		Failed:   int(nFailed.Load()),
	}
	s.logger.Info().
		Int64("user_id", userID).
		Int("followed", result.Followed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("muspy sync finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

type syncOutcome int

const (
	syncFailed syncOutcome = iota
	syncFollowed
	syncSkipped
)

// syncArtist only reads followed, so workers share it without locking.
func (s *Syncer) syncArtist(ctx context.Context, userID int64, a store.UserArtist, followed map[string]bool, m MuspyFollower, mb ArtistSearcher) syncOutcome {
	if ctx.Err() != nil {
		return syncFailed
	}
	log := s.logger.With().Str("artist", a.Name).Logger()

	mbid := a.MBID
	if mbid == "" {
		match, err := mb.SearchArtist(ctx, a.Name)
		if err != nil {
			if errors.Is(err, musicbrainz.ErrNoMatch) {
				log.Warn().Msg("no MusicBrainz match, skipping")
			} else {
				log.Error().Err(err).Msg("MusicBrainz lookup failed")
			}
			return syncFailed
		}
		mbid = match.ID
		if err := s.store.SetArtistMBID(ctx, userID, a.Name, mbid); err != nil {
			log.Warn().Err(err).Msg("failed to save MBID")
		}
	}

	if followed[strings.ToLower(mbid)] {
		return syncSkipped
	}
	if err := m.Follow(ctx, mbid); err != nil {
		log.Error().Err(err).Str("mbid", mbid).Msg("failed to follow on Muspy")
		return syncFailed
	}
	log.Debug().Str("mbid", mbid).Msg("followed on Muspy")
	return syncFollowed
}

package sources

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/cache"
	"github.com/jfmyers9/encore/internal/store"
	"github.com/jfmyers9/encore/pkg/bandsintown"
)

// BandsintownName is the source recorded on Bandsintown concerts.
const BandsintownName = "bandsintown"

// ArtistEventLister is the part of the Bandsintown client used here.
type ArtistEventLister interface {
	ArtistEvents(ctx context.Context, artist string) ([]bandsintown.Event, error)
}

// Bandsintown searches an artist's Bandsintown events.
type Bandsintown struct {
	client ArtistEventLister
	cache  *cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewBandsintown creates the Bandsintown service.
func NewBandsintown(client ArtistEventLister, c *cache.Cache, ttl time.Duration, logger zerolog.Logger) *Bandsintown {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Bandsintown{
		client: client,
		cache:  c,
		ttl:    ttl,
		logger: logger.With().Str("component", BandsintownName).Logger(),
	}
}

// Name implements search.Service.
func (b *Bandsintown) Name() string {
	return BandsintownName
}

// Search implements search.Service.
func (b *Bandsintown) Search(ctx context.Context, artist string) ([]store.Concert, error) {
	return cache.Fetch(ctx, b.cache, cacheKey(BandsintownName, artist), b.ttl, func(ctx context.Context) ([]store.Concert, error) {
		return b.fetch(ctx, artist)
	})
}

func (b *Bandsintown) fetch(ctx context.Context, artist string) ([]store.Concert, error) {
	events, err := b.client.ArtistEvents(ctx, artist)
	if err != nil {
		return nil, err
	}

	concerts := []store.Concert{}
	for _, e := range events {
		name := strings.TrimSpace(artist)
		if len(e.Lineup) > 0 {
			var ok bool
			if name, ok = performer(artist, e.Lineup); !ok {
				continue
			}
		}
		start, err := e.Start()
		if err != nil {
			b.logger.Debug().Err(err).Str("event", e.ID).Msg("skipping event with bad date")
			continue
		}
		concerts = append(concerts, store.Concert{
			Artist:     name,
			Name:       e.Title,
			Venue:      e.Venue.Name,
			City:       e.Venue.City,
			Country:    e.Venue.Country,
			Date:       start.Format("2006-01-02"),
			Time:       start.Format("15:04"),
			URL:        e.URL,
			Source:     BandsintownName,
			ExternalID: e.ID,
		})
	}
	b.logger.Debug().Str("artist", artist).Int("count", len(concerts)).Msg("fetched events")
	return concerts, nil
}

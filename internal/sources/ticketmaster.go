package sources

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/cache"
	"github.com/jfmyers9/encore/internal/store"
	"github.com/jfmyers9/encore/pkg/ticketmaster"
)

// TicketmasterName is the source recorded on Ticketmaster concerts.
const TicketmasterName = "ticketmaster"

// EventSearcher is the part of the Ticketmaster client used here.
type EventSearcher interface {
	Events(ctx context.Context, q ticketmaster.EventQuery) (*ticketmaster.EventPage, error)
}

// Ticketmaster searches the Discovery API.
type Ticketmaster struct {
	client   EventSearcher
	cache    *cache.Cache
	ttl      time.Duration
	maxPages int
	logger   zerolog.Logger
}

// NewTicketmaster creates the Ticketmaster service. A nil cache disables
// caching; a zero ttl uses DefaultTTL.
func NewTicketmaster(client EventSearcher, c *cache.Cache, ttl time.Duration, logger zerolog.Logger) *Ticketmaster {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ticketmaster{
		client:   client,
		cache:    c,
		ttl:      ttl,
		maxPages: 3,
		logger:   logger.With().Str("component", TicketmasterName).Logger(),
	}
}

// Name implements search.Service.
func (t *Ticketmaster) Name() string {
	return TicketmasterName
}

// Search implements search.Service.
func (t *Ticketmaster) Search(ctx context.Context, artist string) ([]store.Concert, error) {
	return cache.Fetch(ctx, t.cache, cacheKey(TicketmasterName, artist), t.ttl, func(ctx context.Context) ([]store.Concert, error) {
		return t.fetch(ctx, artist)
	})
}

func (t *Ticketmaster) fetch(ctx context.Context, artist string) ([]store.Concert, error) {
	concerts := []store.Concert{}
	for page := 0; page < t.maxPages; page++ {
		result, err := t.client.Events(ctx, ticketmaster.EventQuery{Keyword: artist, Size: 200, Page: page})
		if err != nil {
			return nil, err
		}
		for _, e := range result.Events {
			name, ok := t.matches(artist, e)
			if !ok {
				continue
			}
			concerts = append(concerts, store.Concert{
				Artist:      name,
				Name:        e.Name,
				Venue:       e.Venue.Name,
				City:        e.Venue.City,
				Country:     e.Venue.Country,
				CountryCode: strings.ToUpper(e.Venue.CountryCode),
				Date:        e.LocalDate,
				Time:        shortTime(e.LocalTime),
				URL:         e.URL,
				Source:      TicketmasterName,
				ExternalID:  e.ID,
			})
		}
		if page+1 >= result.TotalPages {
			break
		}
	}
	t.logger.Debug().Str("artist", artist).Int("count", len(concerts)).Msg("fetched events")
	return concerts, nil
}

// matches drops keyword hits for other acts and returns the artist name to
// store. Events without attractions are kept when their name mentions the
// artist.
func (t *Ticketmaster) matches(artist string, e ticketmaster.Event) (string, bool) {
	if e.LocalDate == "" {
		return "", false
	}
	if len(e.Attractions) > 0 {
		return performer(artist, e.Attractions)
	}
	artist = strings.TrimSpace(artist)
	return artist, strings.Contains(strings.ToLower(e.Name), strings.ToLower(artist))
}

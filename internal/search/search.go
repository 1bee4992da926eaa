// Package search aggregates concert results from several services.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/store"
)

// Service finds concerts for an artist.
type Service interface {
	Name() string
	Search(ctx context.Context, artist string) ([]store.Concert, error)
}

// ConcertSaver persists concerts.
type ConcertSaver interface {
	SaveConcert(ctx context.Context, c *store.Concert) (bool, error)
}

// Result is the outcome of one aggregated search.
type Result struct {
	Concerts []store.Concert
	Inserted int              // concerts that were not stored before
	Failed   map[string]error // errors by service name
}

// Searcher runs every service in order and merges their results.
type Searcher struct {
	services []Service
	saver    ConcertSaver
	dryRun   bool
	logger   zerolog.Logger
}

// NewSearcher creates a Searcher. A nil saver behaves like dry-run.
func NewSearcher(saver ConcertSaver, logger zerolog.Logger, services ...Service) *Searcher {
	return &Searcher{
		services: services,
		saver:    saver,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// SetDryRun disables persistence of found concerts.
func (s *Searcher) SetDryRun(dryRun bool) {
	s.dryRun = dryRun
}

// Services returns the names of the configured services.
func (s *Searcher) Services() []string {
	names := make([]string, len(s.services))
	for i, svc := range s.services {
		names[i] = svc.Name()
	}
	return names
}

// Only returns a copy of the searcher restricted to the named services.
func (s *Searcher) Only(names ...string) (*Searcher, error) {
	if len(names) == 0 {
		return s, nil
	}
	cp := *s
	cp.services = nil
	for _, name := range names {
		svc := s.service(name)
		if svc == nil {
			return nil, fmt.Errorf("unknown search service %q (available: %s)", name, strings.Join(s.Services(), ", "))
		}
		cp.services = append(cp.services, svc)
	}
	return &cp, nil
}

func (s *Searcher) service(name string) Service {
	for _, svc := range s.services {
		if strings.EqualFold(svc.Name(), name) {
			return svc
		}
	}
	return nil
}

// Search queries each service sequentially. A failing service is logged
// and skipped. The merged results keep service order and contain each
// concert once. An error is returned only when the context ends or every
// service failed.
func (s *Searcher) Search(ctx context.Context, artist string) (*Result, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return nil, fmt.Errorf("artist is required")
	}

	result := &Result{Failed: make(map[string]error)}
	seen := make(map[string]bool)
	var errs []error

	for _, svc := range s.services {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := s.logger.With().Str("service", svc.Name()).Str("artist", artist).Logger()
		concerts, err := svc.Search(ctx, artist)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("search service failed, skipping")
			result.Failed[svc.Name()] = err
			errs = append(errs, fmt.Errorf("%s: %w", svc.Name(), err))
			continue
		}
		log.Debug().Int("count", len(concerts)).Msg("search service returned")

		for _, c := range concerts {
			if c.Source == "" {
				c.Source = svc.Name()
			}
			key := c.Key()
			if seen[key] {
				continue
			}
			seen[key] = true

			if !s.dryRun && s.saver != nil {
				inserted, err := s.saver.SaveConcert(ctx, &c)
				if err != nil {
					log.Error().Err(err).Str("date", c.Date).Msg("failed to save concert")
				} else if inserted {
					result.Inserted++
				}
			}
			result.Concerts = append(result.Concerts, c)
		}
	}

	if len(s.services) > 0 && len(errs) == len(s.services) {
		return result, fmt.Errorf("all search services failed: %w", errors.Join(errs...))
	}
	return result, nil
}

package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/geo"
	"github.com/jfmyers9/encore/internal/store"
)

// CountryResolver resolves countries and their cities.
type CountryResolver interface {
	Lookup(ctx context.Context, input string) (geo.Country, error)
	Cities(ctx context.Context, country string) ([]string, error)
}

// FilterByCountry keeps the concerts that take place in country, given as
// an ISO2 code or a name. A concert matches on its country code; without
// one it matches on its country name, then on its city being one of the
// country's cities. An empty country returns concerts unchanged.
func FilterByCountry(ctx context.Context, concerts []store.Concert, country string, resolver CountryResolver, logger zerolog.Logger) ([]store.Concert, error) {
	if strings.TrimSpace(country) == "" {
		return concerts, nil
	}
	if resolver == nil {
		return nil, fmt.Errorf("no country resolver configured")
	}
	target, err := resolver.Lookup(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve country filter: %w", err)
	}

	var cities map[string]bool
	loadCities := func() map[string]bool {
		if cities != nil || target.Name == "" {
			return cities
		}
		cities = make(map[string]bool)
		list, err := resolver.Cities(ctx, target.Name)
		if err != nil {
			logger.Warn().Err(err).Str("country", target.Name).Msg("city list unavailable")
			return cities
		}
		for _, city := range list {
			cities[strings.ToLower(city)] = true
		}
		return cities
	}

	var filtered []store.Concert
	for _, c := range concerts {
		if matchesCountry(ctx, c, target, resolver, loadCities) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func matchesCountry(ctx context.Context, c store.Concert, target geo.Country, resolver CountryResolver, cities func() map[string]bool) bool {
	if c.CountryCode != "" {
		return strings.EqualFold(c.CountryCode, target.ISO2)
	}
	if c.Country != "" {
		if target.Name != "" && strings.EqualFold(c.Country, target.Name) {
			return true
		}
		if resolved, err := resolver.Lookup(ctx, c.Country); err == nil {
			return strings.EqualFold(resolved.ISO2, target.ISO2)
		}
	}
	if c.City != "" {
		return cities()[strings.ToLower(c.City)]
	}
	return false
}

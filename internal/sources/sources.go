// Package sources adapts the concert API clients to search.Service.
package sources

import (
	"strings"
	"time"
)

// DefaultTTL is how long search results are served from the cache.
const DefaultTTL = 12 * time.Hour

func cacheKey(service, artist string) string {
	return service + "_" + strings.ToLower(strings.TrimSpace(artist))
}

// performer returns the provider's spelling of artist when it is one of
// names. Stored concerts use that spelling so that searches differing only
// in case resolve to the same row.
func performer(artist string, names []string) (string, bool) {
	artist = strings.TrimSpace(artist)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, artist) {
			return name, true
		}
	}
	return "", false
}

// shortTime trims seconds from an HH:MM:SS time.
func shortTime(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

package muspy

import (
	"sort"
	"strings"
)

// NormalizeKey lower-cases s, trims it and collapses inner whitespace.
// Applying it twice gives the same result as applying it once.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ReleaseKey identifies a release by artist and title regardless of casing
// and spacing differences between MusicBrainz release groups.
func ReleaseKey(artist, title string) string {
	return NormalizeKey(artist) + "|" + NormalizeKey(title)
}

// DedupeReleases drops releases whose ReleaseKey was already seen, keeping the
// earliest dated entry, and returns the rest sorted by date then artist.
func DedupeReleases(releases []Release) []Release {
	sorted := make([]Release, len(releases))
	copy(sorted, releases)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return NormalizeKey(sorted[i].Artist.Name) < NormalizeKey(sorted[j].Artist.Name)
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, r := range sorted {
		key := ReleaseKey(r.Artist.Name, r.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

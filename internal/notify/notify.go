// Package notify delivers new-concert messages to users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/store"
)

// Notifier tells a user about concerts.
type Notifier interface {
	Notify(ctx context.Context, user store.User, concerts []store.Concert) error
}

// Multi sends through every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, user store.User, concerts []store.Concert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, user, concerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to a logger. It is used when no other channel
// is configured.
type Log struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (l Log) Notify(ctx context.Context, user store.User, concerts []store.Concert) error {
	for _, c := range concerts {
		l.Logger.Info().
			Int64("user_id", user.ID).
			Str("artist", c.Artist).
			Str("date", c.Date).
			Str("venue", c.Venue).
			Str("city", c.City).
			Str("url", c.URL).
			Msg("new concert")
	}
	return nil
}

// FormatConcerts renders concerts as a plain-text message sorted by date,
// time and artist.
func FormatConcerts(concerts []store.Concert) string {
	sorted := make([]store.Concert, len(concerts))
	copy(sorted, concerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return strings.ToLower(a.Artist) < strings.ToLower(b.Artist)
	})

	var sb strings.Builder
	if len(sorted) == 1 {
		sb.WriteString("New concert:\n")
	} else {
		fmt.Fprintf(&sb, "New concerts (%d):\n", len(sorted))
	}
	for _, c := range sorted {
		sb.WriteString("\n")
		when := c.Date
		if c.Time != "" {
			when += " " + c.Time
		}
		fmt.Fprintf(&sb, "%s  %s\n", when, c.Artist)
		if place := joinNonEmpty(", ", c.Venue, c.City, c.Country); place != "" {
			fmt.Fprintf(&sb, "  %s\n", place)
		}
		if c.URL != "" {
			fmt.Fprintf(&sb, "  %s\n", c.URL)
		}
	}
	return sb.String()
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// splitMessage breaks text at line boundaries into chunks of at most limit
// UTF-16 code units, the unit Telegram counts. A longer line is cut on a
// rune boundary, never directly after a backslash, so escapes stay whole.
func splitMessage(text string, limit int) []string {
	var chunks []string
	var current strings.Builder
	size := 0
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := textLen(line)
		for n > limit {
			flush()
			head, tail := cutLine(line, limit)
			chunks = append(chunks, head)
			line, n = tail, textLen(tail)
		}
		if size+n > limit {
			flush()
		}
		current.WriteString(line)
		size += n
	}
	flush()
	return chunks
}

func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// cutLine splits line after at most limit UTF-16 code units.
func cutLine(line string, limit int) (string, string) {
	end, n := 0, 0
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		w := utf16.RuneLen(r)
		if n+w > limit {
			break
		}
		n += w
		end += size
	}
	for end > 1 && line[end-1] == '\\' {
		end--
	}
	if end == 0 {
		_, end = utf8.DecodeRuneInString(line)
	}
	return line[:end], line[end:]
}

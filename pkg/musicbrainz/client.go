// Package musicbrainz resolves artist names to MusicBrainz identifiers.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the MusicBrainz web service root.
const DefaultBaseURL = "https://musicbrainz.org/ws/2"

// MinScore is the lowest search score accepted as a match.
const MinScore = 90

// ErrNoMatch is returned when no artist scores at least MinScore.
var ErrNoMatch = errors.New("musicbrainz: no matching artist")

// Config holds client configuration.
type Config struct {
	// UserAgent identifies the application, as MusicBrainz requires.
	UserAgent  string
	HTTPClient *http.Client
	BaseURL    string
	// Interval between requests; MusicBrainz allows one per second.
	Interval time.Duration
}

// Client performs rate limited MusicBrainz lookups.
type Client struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// Artist is a search hit.
type Artist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Country        string `json:"country"`
	Disambiguation string `json:"disambiguation"`
	Score          int    `json:"score"`
}

// NewClient creates a MusicBrainz client.
func NewClient(cfg Config) *Client {
	ua := cfg.UserAgent
	if ua == "" {
		ua = "encore/1.0 (https://github.com/jfmyers9/encore)"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Client{
		userAgent:  ua,
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
	}
}

// SearchArtist returns the best match for name. An exact, case-insensitive
// name match wins over a higher scored partial match.
func (c *Client) SearchArtist(ctx context.Context, name string) (*Artist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("musicbrainz: name is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"query": {fmt.Sprintf(`artist:"%s"`, strings.ReplaceAll(name, `"`, `\"`))},
		"fmt":   {"json"},
		"limit": {"5"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/artist?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("musicbrainz: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Artists []Artist `json:"artists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("musicbrainz: failed to decode response: %w", err)
	}

	var best *Artist
	for i := range result.Artists {
		a := &result.Artists[i]
		if a.Score < MinScore {
			continue
		}
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
		if best == nil || a.Score > best.Score {
			best = a
		}
	}
	if best == nil {
		return nil, ErrNoMatch
	}
	return best, nil
}

// Package bandsintown reads upcoming artist events from the Bandsintown API.
package bandsintown

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Bandsintown REST root.
const DefaultBaseURL = "https://rest.bandsintown.com"

// Config holds client configuration.
type Config struct {
	AppID      string       // Required: Bandsintown app id
	HTTPClient *http.Client // Optional
	BaseURL    string       // Optional: used for testing
}

// Client queries Bandsintown.
type Client struct {
	appID      string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Bandsintown client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("bandsintown: AppID is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{appID: cfg.AppID, httpClient: httpClient, baseURL: baseURL}, nil
}

// Venue of an event. Bandsintown reports countries by name only.
type Venue struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Event is one upcoming show.
type Event struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	DateTime string   `json:"datetime"` // local time, 2006-01-02T15:04:05
	Venue    Venue    `json:"venue"`
	Lineup   []string `json:"lineup"`
}

// Start parses DateTime.
func (e Event) Start() (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05", e.DateTime)
}

// ArtistEvents returns the upcoming events of artist. Unknown artists yield
// an empty slice rather than an error.
func (c *Client) ArtistEvents(ctx context.Context, artist string) ([]Event, error) {
	if strings.TrimSpace(artist) == "" {
		return nil, fmt.Errorf("bandsintown: artist is required")
	}

	// Bandsintown wants these characters double-encoded inside the path segment;
	// PathEscape supplies the second round.
	name := strings.NewReplacer("/", "%2F", "?", "%3F", "*", "%2A").Replace(artist)
	endpoint := fmt.Sprintf("%s/artists/%s/events?%s", c.baseURL, url.PathEscape(name), url.Values{
		"app_id": {c.appID},
		"date":   {"upcoming"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("bandsintown: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bandsintown: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bandsintown: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return []Event{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bandsintown: unexpected status %d", resp.StatusCode)
	}

	// Unknown artists come back as an object with an errorMessage, or as an empty body.
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return []Event{}, nil
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("bandsintown: failed to parse events: %w", err)
	}
	return events, nil
}

// Package ticketmaster is a small client for the Ticketmaster Discovery API v2,
// limited to the music event search used for concert tracking.
package ticketmaster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Discovery API root.
const DefaultBaseURL = "https://app.ticketmaster.com/discovery/v2"

// Config holds client configuration.
type Config struct {
	APIKey            string       // Required: Discovery API consumer key
	HTTPClient        *http.Client // Optional: defaults to a client with a 30s timeout
	BaseURL           string       // Optional: used for testing
	RequestsPerSecond float64      // Optional: defaults to 5, the Discovery API quota
}

// Client queries the Discovery API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter

	// default wait when a 429 carries no Retry-After header
	retryAfter time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ticketmaster: unexpected status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a Discovery API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ticketmaster: APIKey is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retryAfter: 2 * time.Second,
	}, nil
}

// EventQuery filters an event search.
type EventQuery struct {
	Keyword     string
	CountryCode string // ISO 3166-1 alpha-2, optional
	Size        int    // page size, defaults to 50 (API max 200)
	Page        int
}

// Venue is where an event takes place.
type Venue struct {
	Name        string
	City        string
	Country     string
	CountryCode string
}

// Event is a single music event.
type Event struct {
	ID          string
	Name        string
	URL         string
	LocalDate   string // YYYY-MM-DD
	LocalTime   string // HH:MM:SS, may be empty
	Venue       Venue
	Attractions []string
}

// EventPage is one page of search results.
type EventPage struct {
	Events        []Event
	Page          int
	TotalPages    int
	TotalElements int
}

type eventsResponse struct {
	Embedded struct {
		Events []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			URL   string `json:"url"`
			Dates struct {
				Start struct {
					LocalDate string `json:"localDate"`
					LocalTime string `json:"localTime"`
				} `json:"start"`
			} `json:"dates"`
			Embedded struct {
				Venues []struct {
					Name string `json:"name"`
					City struct {
						Name string `json:"name"`
					} `json:"city"`
					Country struct {
						Name        string `json:"name"`
						CountryCode string `json:"countryCode"`
					} `json:"country"`
				} `json:"venues"`
				Attractions []struct {
					Name string `json:"name"`
				} `json:"attractions"`
			} `json:"_embedded"`
		} `json:"events"`
	} `json:"_embedded"`
	Page struct {
		Size          int `json:"size"`
		TotalElements int `json:"totalElements"`
		TotalPages    int `json:"totalPages"`
		Number        int `json:"number"`
	} `json:"page"`
}

// maxRetries bounds how often a rate limited request is repeated.
const maxRetries = 3

// Events searches music events. A search without matches returns an empty page.
func (c *Client) Events(ctx context.Context, q EventQuery) (*EventPage, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("classificationName", "music")
	params.Set("sort", "date,asc")
	if q.Keyword != "" {
		params.Set("keyword", q.Keyword)
	}
	if q.CountryCode != "" {
		params.Set("countryCode", q.CountryCode)
	}
	size := q.Size
	if size <= 0 {
		size = 50
	}
	params.Set("size", strconv.Itoa(size))
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}

	body, err := c.get(ctx, "/events.json", params)
	if err != nil {
		return nil, err
	}

	var resp eventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ticketmaster: failed to parse events: %w", err)
	}

	page := &EventPage{
		Page:          resp.Page.Number,
		TotalPages:    resp.Page.TotalPages,
		TotalElements: resp.Page.TotalElements,
		Events:        make([]Event, 0, len(resp.Embedded.Events)),
	}
	for _, e := range resp.Embedded.Events {
		ev := Event{
			ID:        e.ID,
			Name:      e.Name,
			URL:       e.URL,
			LocalDate: e.Dates.Start.LocalDate,
			LocalTime: e.Dates.Start.LocalTime,
		}
		if len(e.Embedded.Venues) > 0 {
			v := e.Embedded.Venues[0]
			ev.Venue = Venue{
				Name:        v.Name,
				City:        v.City.Name,
				Country:     v.Country.Name,
				CountryCode: v.Country.CountryCode,
			}
		}
		for _, a := range e.Embedded.Attractions {
			ev.Attractions = append(ev.Attractions, a.Name)
		}
		page.Events = append(page.Events, ev)
	}

	return page, nil
}

// get performs a rate limited GET, retrying up to maxRetries times on
// HTTP 429.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("ticketmaster: failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("ticketmaster: request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("ticketmaster: failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt <= maxRetries {
			wait := c.retryAfter
			if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
				wait = time.Duration(s) * time.Second
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
		}
		return body, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

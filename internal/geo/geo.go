// Package geo resolves country names and codes and lists a country's
// cities using the CountriesNow API.
package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/cache"
)

// DefaultBaseURL is the CountriesNow API root.
const DefaultBaseURL = "https://countriesnow.space/api/v0.1"

// listRetryDelay is how long lookups use the built-in table after the
// country list could not be fetched.
const listRetryDelay = time.Minute

// Country is a country name with its ISO 3166-1 alpha-2 code.
type Country struct {
	Name string `json:"name"`
	ISO2 string `json:"iso2"`
}

// Config configures a Resolver.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      *cache.Cache  // optional
	TTL        time.Duration // cache lifetime, defaults to 30 days
	Logger     zerolog.Logger
}

// Resolver looks up countries and cities.
type Resolver struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	ttl        time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	mu           sync.Mutex
	listFailedAt time.Time
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		cache:      cfg.Cache,
		ttl:        cfg.TTL,
		logger:     cfg.Logger.With().Str("component", "geo").Logger(),
		now:        time.Now,
	}
	if r.baseURL == "" {
		r.baseURL = DefaultBaseURL
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if r.ttl <= 0 {
		r.ttl = 30 * 24 * time.Hour
	}
	return r
}

type apiResponse struct {
	Error bool            `json:"error"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data"`
}

// Countries returns every known country sorted by name.
func (r *Resolver) Countries(ctx context.Context) ([]Country, error) {
	return cache.Fetch(ctx, r.cache, "countriesnow_countries", r.ttl, func(ctx context.Context) ([]Country, error) {
		var data []struct {
			Name string `json:"name"`
			ISO2 string `json:"Iso2"`
		}
		if err := r.call(ctx, http.MethodGet, "/countries/iso", nil, &data); err != nil {
			return nil, err
		}
		countries := make([]Country, 0, len(data))
		for _, d := range data {
			if d.Name == "" || d.ISO2 == "" {
				continue
			}
			countries = append(countries, Country{Name: d.Name, ISO2: strings.ToUpper(d.ISO2)})
		}
		sort.Slice(countries, func(i, j int) bool { return countries[i].Name < countries[j].Name })
		return countries, nil
	})
}

// Cities returns the cities of the named country.
func (r *Resolver) Cities(ctx context.Context, country string) ([]string, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, fmt.Errorf("country is required")
	}
	key := "countriesnow_cities_" + strings.ToLower(country)
	return cache.Fetch(ctx, r.cache, key, r.ttl, func(ctx context.Context) ([]string, error) {
		body := map[string]string{"country": country}
		var cities []string
		if err := r.call(ctx, http.MethodPost, "/countries/cities", body, &cities); err != nil {
			return nil, err
		}
		return cities, nil
	})
}

// CountryCode resolves an ISO2 code or a country name, case-insensitively,
// to an upper-case ISO2 code.
func (r *Resolver) CountryCode(ctx context.Context, input string) (string, error) {
	c, err := r.Lookup(ctx, input)
	if err != nil {
		return "", err
	}
	return c.ISO2, nil
}

// Lookup resolves an ISO2 code or a country name to a Country.
func (r *Resolver) Lookup(ctx context.Context, input string) (Country, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Country{}, fmt.Errorf("country is required")
	}
	if code, ok := aliases[strings.ToLower(input)]; ok {
		input = code
	}

	if c, ok := match(r.countryList(ctx), input); ok {
		return c, nil
	}
	// The API list may spell a country differently than the built-in table.
	if c, ok := match(builtinCountries, input); ok {
		return c, nil
	}
	if len(input) == 2 && isLetters(input) {
		return Country{ISO2: strings.ToUpper(input)}, nil
	}
	return Country{}, fmt.Errorf("unknown country %q", input)
}

// countryList returns the API country list, or the built-in table when it
// cannot be fetched. A failure is remembered for listRetryDelay so a batch
// of lookups costs one failed request.
func (r *Resolver) countryList(ctx context.Context) []Country {
	r.mu.Lock()
	failing := !r.listFailedAt.IsZero() && r.now().Sub(r.listFailedAt) < listRetryDelay
	r.mu.Unlock()
	if failing {
		return builtinCountries
	}

	countries, err := r.Countries(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("country list unavailable, using built-in table")
		if ctx.Err() == nil {
			r.mu.Lock()
			r.listFailedAt = r.now()
			r.mu.Unlock()
		}
		return builtinCountries
	}
	return countries
}

func match(countries []Country, input string) (Country, bool) {
	for _, c := range countries {
		if strings.EqualFold(c.ISO2, input) || strings.EqualFold(c.Name, input) {
			return c, true
		}
	}
	return Country{}, false
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func (r *Resolver) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("countriesnow request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return fmt.Errorf("countriesnow: unexpected response (status %d): %w", resp.StatusCode, err)
	}
	if ar.Error || resp.StatusCode >= 300 {
		return fmt.Errorf("countriesnow: %s (status %d)", ar.Msg, resp.StatusCode)
	}
	if err := json.Unmarshal(ar.Data, out); err != nil {
		return fmt.Errorf("failed to decode countriesnow data: %w", err)
	}
	return nil
}

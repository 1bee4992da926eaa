// Package lastfm provides a client for the Last.fm API 2.0.
//
// Example usage:
//
//	import "github.com/jfmyers9/encore/pkg/lastfm"
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:    "your-api-key",
//	    APISecret: "your-api-secret",
//	})
//
//	artists, err := client.User().TopArtists(ctx, "rj", lastfm.PeriodOverall, 50)
package lastfm

import (
	"fmt"
	"net/http"
	"time"
)

// Config holds client configuration.
type Config struct {
	APIKey     string       // Required: Last.fm API key
	APISecret  string       // Required: Last.fm API secret
	SessionKey string       // Optional: Session key for authenticated requests
	HTTPClient *http.Client // Optional: HTTP client (defaults to a client with a 30s timeout)
	BaseURL    string       // Optional: Base URL for API (defaults to Last.fm API, used for testing)
	Logger     Logger       // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for Last.fm API operations.
type Client struct {
	apiKey     string
	apiSecret  string
	sessionKey string
	httpClient *http.Client
	baseURL    string
	logger     Logger

	// initial retry delay, shortened in tests
	backoff time.Duration

	auth   *AuthService
	user   *UserService
	artist *ArtistService
}

const (
	// DefaultBaseURL is the default Last.fm API endpoint.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"
)

// NewClient creates a new Last.fm API client.
//
// Returns an error if required configuration (APIKey, APISecret) is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("lastfm: APIKey is required")
	}
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("lastfm: APISecret is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		sessionKey: cfg.SessionKey,
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     cfg.Logger,
		backoff:    time.Second,
	}

	c.auth = &AuthService{client: c}
	c.user = &UserService{client: c}
	c.artist = &ArtistService{client: c}

	return c, nil
}

// Auth returns the authentication service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// User returns the user library service.
func (c *Client) User() *UserService {
	return c.user
}

// Artist returns the artist metadata service.
func (c *Client) Artist() *ArtistService {
	return c.artist
}

// SetSessionKey sets the session key for authenticated requests.
func (c *Client) SetSessionKey(key string) {
	c.sessionKey = key
}

// GetSessionKey returns the current session key.
func (c *Client) GetSessionKey() string {
	return c.sessionKey
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}

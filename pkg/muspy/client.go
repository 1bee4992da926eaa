// Package muspy talks to the Muspy release notification service
// (https://muspy.com/api) using HTTP Basic authentication.
package muspy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// DefaultBaseURL is the Muspy API root.
const DefaultBaseURL = "https://muspy.com/api/1"

// Config holds client configuration.
type Config struct {
	Username   string // Required: account e-mail
	Password   string // Required
	UserID     string // Optional: looked up through User when empty
	HTTPClient *http.Client
	BaseURL    string
}

// Client is a Muspy API client. It is safe for concurrent use.
type Client struct {
	username string
	password string

	mu     sync.Mutex
	userID string

	httpClient *http.Client
	baseURL    string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("muspy: %s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// Artist is an artist followed on Muspy.
type Artist struct {
	MBID           string `json:"mbid"`
	Name           string `json:"name"`
	SortName       string `json:"sort_name"`
	Disambiguation string `json:"disambiguation"`
}

// Release is a release group announced by Muspy.
type Release struct {
	MBID          string `json:"mbid"`
	Title         string `json:"title"`
	Date          string `json:"date"` // YYYY-MM-DD, YYYY-MM or YYYY
	Type          string `json:"type"`
	InstanceCount int    `json:"instance_count"`
	Artist        Artist `json:"artist"`
}

// User is the authenticated account.
type User struct {
	UserID string `json:"userid"`
	Email  string `json:"email"`
}

// NewClient creates a Muspy client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("muspy: username and password are required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		username:   cfg.Username,
		password:   cfg.Password,
		userID:     cfg.UserID,
		httpClient: httpClient,
		baseURL:    baseURL,
	}, nil
}

// User returns the authenticated account and remembers its user id.
func (c *Client) User(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.userID == "" {
		c.userID = u.UserID
	}
	c.mu.Unlock()
	return &u, nil
}

func (c *Client) resolveUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	uid := c.userID
	c.mu.Unlock()
	if uid != "" {
		return uid, nil
	}

	u, err := c.User(ctx)
	if err != nil {
		return "", fmt.Errorf("muspy: failed to resolve user id: %w", err)
	}
	return u.UserID, nil
}

// Artists lists the artists the user follows.
func (c *Client) Artists(ctx context.Context) ([]Artist, error) {
	uid, err := c.resolveUserID(ctx)
	if err != nil {
		return nil, err
	}
	var artists []Artist
	if err := c.do(ctx, http.MethodGet, "/artists/"+uid, nil, &artists); err != nil {
		return nil, err
	}
	return artists, nil
}

// Follow starts following the artist with mbid.
func (c *Client) Follow(ctx context.Context, mbid string) error {
	if mbid == "" {
		return fmt.Errorf("muspy: mbid is required")
	}
	uid, err := c.resolveUserID(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/artists/"+uid+"/"+url.PathEscape(mbid), nil, nil)
}

// Unfollow stops following the artist with mbid.
func (c *Client) Unfollow(ctx context.Context, mbid string) error {
	if mbid == "" {
		return fmt.Errorf("muspy: mbid is required")
	}
	uid, err := c.resolveUserID(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/artists/"+uid+"/"+url.PathEscape(mbid), nil, nil)
}

// ReleaseQuery narrows a release listing.
type ReleaseQuery struct {
	MBID   string // only releases of this artist
	Since  string // release mbid to continue after
	Limit  int    // server default is 40, max 100
	Offset int
}

// Releases lists upcoming and recent releases of the followed artists.
func (c *Client) Releases(ctx context.Context, q ReleaseQuery) ([]Release, error) {
	uid, err := c.resolveUserID(ctx)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if q.MBID != "" {
		params.Set("mbid", q.MBID)
	}
	if q.Since != "" {
		params.Set("since", q.Since)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/releases/" + uid
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var releases []Release
	if err := c.do(ctx, http.MethodGet, path, nil, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("muspy: failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("muspy: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("muspy: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("muspy: failed to decode response: %w", err)
	}
	return nil
}

// Package cache stores API responses as JSON files with an in-memory layer
// in front, and serves stale entries when a refresh fails.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	// maxKeyLength is the longest key stored under its sanitized name.
	// Longer keys are stored by their MD5 digest.
	maxKeyLength = 120

	memoryExpiration = 30 * time.Minute
	memoryCleanup    = 10 * time.Minute
)

var unsafeChars = regexp.MustCompile(`[/\\?%*:|"<>]`)

// SanitizeFilename replaces characters that are not allowed in file names
// with '-'. All other characters are kept.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "-")
}

type entry struct {
	Key       string          `json:"key"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Cache is a JSON file cache. The zero value is not usable; call New.
type Cache struct {
	dir    string
	mem    *gocache.Cache
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string, logger zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{
		dir:    dir,
		mem:    gocache.New(memoryExpiration, memoryCleanup),
		logger: logger.With().Str("component", "cache").Logger(),
		now:    time.Now,
	}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the file an entry for key is stored in.
func (c *Cache) Path(key string) string {
	name := SanitizeFilename(key)
	if len(key) > maxKeyLength {
		sum := md5.Sum([]byte(key))
		name = hex.EncodeToString(sum[:])
	}
	return filepath.Join(c.dir, name+".json")
}

// Get returns the raw data stored for key and when it was stored.
func (c *Cache) Get(key string) (json.RawMessage, time.Time, bool) {
	if v, ok := c.mem.Get(key); ok {
		e := v.(entry)
		return e.Data, time.Unix(e.Timestamp, 0), true
	}

	data, err := os.ReadFile(c.Path(key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn().Err(err).Str("key", key).Msg("failed to read cache file")
		}
		return nil, time.Time{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("ignoring corrupt cache file")
		return nil, time.Time{}, false
	}
	// Two long keys may share a digest; never serve another key's data.
	if e.Key != key {
		return nil, time.Time{}, false
	}

	c.mem.SetDefault(key, e)
	return e.Data, time.Unix(e.Timestamp, 0), true
}

// Set stores v under key.
func (c *Cache) Set(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	e := entry{Key: key, Timestamp: c.now().Unix(), Data: data}

	raw, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	path := c.Path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	c.mem.SetDefault(key, e)
	return nil
}

// Delete removes the entry for key.
func (c *Cache) Delete(key string) error {
	c.mem.Delete(key)
	if err := os.Remove(c.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Fetch returns the value cached under key if it is younger than ttl.
// Otherwise it calls fetch and caches the result. When fetch fails and an
// older value exists, the stale value is returned instead of the error.
// A nil cache always calls fetch.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return fetch(ctx)
	}

	var stale *T
	if data, storedAt, ok := c.Get(key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("ignoring undecodable cache entry")
		} else if c.now().Sub(storedAt) < ttl {
			c.logger.Debug().Str("key", key).Msg("cache hit")
			return v, nil
		} else {
			stale = &v
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		if stale != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("fetch failed, serving stale cache entry")
			return *stale, nil
		}
		var zero T
		return zero, err
	}

	if err := c.Set(key, v); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to store cache entry")
	}
	return v, nil
}

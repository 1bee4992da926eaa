package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Paths, defaulting to ~/.local/share/encore
	DBPath    string
	CacheDir  string
	StateFile string

	// Logging
	LogFile  string // empty logs to stderr
	LogLevel string

	// How often the daemon checks for due scheduled searches
	PollInterval time.Duration

	// Lifetime of cached API responses
	CacheTTL time.Duration

	Search       SearchConfig
	LastFM       LastFMConfig
	Ticketmaster TicketmasterConfig
	Bandsintown  BandsintownConfig
	Muspy        MuspyConfig
	MusicBrainz  MusicBrainzConfig
	Spotify      SpotifyConfig
	Telegram     TelegramConfig
	Webhook      WebhookConfig
}

// SearchConfig controls concert searches
type SearchConfig struct {
	Services []string      // enabled services, in query order
	Interval time.Duration // default interval for new scheduled searches
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey     string
	APISecret  string
	SessionKey string
	Username   string
}

// TicketmasterConfig holds Discovery API credentials
type TicketmasterConfig struct {
	APIKey string
}

// BandsintownConfig holds Bandsintown credentials
type BandsintownConfig struct {
	AppID string
}

// MuspyConfig holds Muspy account credentials
type MuspyConfig struct {
	Username string
	Password string
	UserID   string
}

// MusicBrainzConfig identifies the application to MusicBrainz
type MusicBrainzConfig struct {
	UserAgent string
}

// SpotifyConfig holds the OAuth application and the saved token
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// TelegramConfig holds the bot token
type TelegramConfig struct {
	BotToken string
}

// WebhookConfig holds the notification webhook
type WebhookConfig struct {
	URL string
}

// envAliases are the plain environment variable names accepted next to
// the ENCORE_ prefixed ones.
var envAliases = map[string]string{
	"lastfm.api_key":        "LASTFM_API_KEY",
	"lastfm.api_secret":     "LASTFM_API_SECRET",
	"ticketmaster.api_key":  "TICKETMASTER_API_KEY",
	"bandsintown.app_id":    "BANDSINTOWN_APP_ID",
	"muspy.username":        "MUSPY_USERNAME",
	"muspy.password":        "MUSPY_PASSWORD",
	"muspy.user_id":         "MUSPY_USER_ID",
	"telegram.bot_token":    "TELEGRAM_BOT_TOKEN",
	"spotify.client_id":     "SPOTIFY_CLIENT_ID",
	"spotify.client_secret": "SPOTIFY_CLIENT_SECRET",
	"webhook.url":           "WEBHOOK_URL",
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from the default locations
// when path is empty. A .env file in the working directory or the config
// directory is loaded into the environment first.
func LoadFile(path string) (*Config, error) {
	configDir := getConfigDir()

	// Missing .env files are fine; existing variables win over them.
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	dataDir := GetDataDir()
	v.SetDefault("db_path", filepath.Join(dataDir, "encore.db"))
	v.SetDefault("cache_dir", filepath.Join(dataDir, "cache"))
	v.SetDefault("state_file", filepath.Join(dataDir, "state.json"))
	v.SetDefault("log_level", "info")
	v.SetDefault("poll_interval", "60s")
	v.SetDefault("cache.ttl", "12h")
	v.SetDefault("search.services", []string{"ticketmaster", "bandsintown"})
	v.SetDefault("search.interval", "24h")
	v.SetDefault("musicbrainz.user_agent", "encore/1.0 ( https://github.com/jfmyers9/encore )")
	v.SetDefault("spotify.redirect_uri", "http://127.0.0.1:28542/callback")

	// The file is optional unless it was named explicitly.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("ENCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		_ = v.BindEnv(key, "ENCORE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), alias)
	}

	cfg := &Config{
		DBPath:       v.GetString("db_path"),
		CacheDir:     v.GetString("cache_dir"),
		StateFile:    v.GetString("state_file"),
		LogFile:      v.GetString("log_file"),
		LogLevel:     v.GetString("log_level"),
		PollInterval: v.GetDuration("poll_interval"),
		CacheTTL:     v.GetDuration("cache.ttl"),
		Search: SearchConfig{
			Services: v.GetStringSlice("search.services"),
			Interval: v.GetDuration("search.interval"),
		},
		LastFM: LastFMConfig{
			APIKey:     v.GetString("lastfm.api_key"),
			APISecret:  v.GetString("lastfm.api_secret"),
			SessionKey: v.GetString("lastfm.session_key"),
			Username:   v.GetString("lastfm.username"),
		},
		Ticketmaster: TicketmasterConfig{APIKey: v.GetString("ticketmaster.api_key")},
		Bandsintown:  BandsintownConfig{AppID: v.GetString("bandsintown.app_id")},
		Muspy: MuspyConfig{
			Username: v.GetString("muspy.username"),
			Password: v.GetString("muspy.password"),
			UserID:   v.GetString("muspy.user_id"),
		},
		MusicBrainz: MusicBrainzConfig{UserAgent: v.GetString("musicbrainz.user_agent")},
		Spotify: SpotifyConfig{
			ClientID:     v.GetString("spotify.client_id"),
			ClientSecret: v.GetString("spotify.client_secret"),
			RedirectURL:  v.GetString("spotify.redirect_uri"),
			AccessToken:  v.GetString("spotify.access_token"),
			RefreshToken: v.GetString("spotify.refresh_token"),
			TokenType:    v.GetString("spotify.token_type"),
			Expiry:       v.GetTime("spotify.expiry"),
		},
		Telegram: TelegramConfig{BotToken: v.GetString("telegram.bot_token")},
		Webhook:  WebhookConfig{URL: v.GetString("webhook.url")},
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "encore")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the directory holding the database, cache and state.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "encore")
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.SaveAs(filepath.Join(getConfigDir(), "config.yaml"))
}

// SaveAs writes configuration to path
func (c *Config) SaveAs(path string) error {
	v := viper.New()

	v.Set("db_path", c.DBPath)
	v.Set("cache_dir", c.CacheDir)
	v.Set("state_file", c.StateFile)
	v.Set("log_file", c.LogFile)
	v.Set("log_level", c.LogLevel)
	v.Set("poll_interval", c.PollInterval.String())
	v.Set("cache.ttl", c.CacheTTL.String())
	v.Set("search.services", c.Search.Services)
	v.Set("search.interval", c.Search.Interval.String())
	v.Set("lastfm.api_key", c.LastFM.APIKey)
	v.Set("lastfm.api_secret", c.LastFM.APISecret)
	v.Set("lastfm.session_key", c.LastFM.SessionKey)
	v.Set("lastfm.username", c.LastFM.Username)
	v.Set("ticketmaster.api_key", c.Ticketmaster.APIKey)
	v.Set("bandsintown.app_id", c.Bandsintown.AppID)
	v.Set("muspy.username", c.Muspy.Username)
	v.Set("muspy.password", c.Muspy.Password)
	v.Set("muspy.user_id", c.Muspy.UserID)
	v.Set("musicbrainz.user_agent", c.MusicBrainz.UserAgent)
	v.Set("spotify.client_id", c.Spotify.ClientID)
	v.Set("spotify.client_secret", c.Spotify.ClientSecret)
	v.Set("spotify.redirect_uri", c.Spotify.RedirectURL)
	v.Set("spotify.access_token", c.Spotify.AccessToken)
	v.Set("spotify.refresh_token", c.Spotify.RefreshToken)
	v.Set("spotify.token_type", c.Spotify.TokenType)
	v.Set("spotify.expiry", c.Spotify.Expiry)
	v.Set("telegram.bot_token", c.Telegram.BotToken)
	v.Set("webhook.url", c.Webhook.URL)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	// Credentials live in this file.
	if err := v.WriteConfigAs(path); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}

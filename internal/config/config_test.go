package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points HOME at a temp dir and clears variables that would leak
// into the config from the developer's environment.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, alias := range envAliases {
		t.Setenv(alias, "")
	}
	t.Chdir(home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v, want 60s", cfg.PollInterval)
	}
	if cfg.CacheTTL != 12*time.Hour {
		t.Errorf("CacheTTL = %v, want 12h", cfg.CacheTTL)
	}
	if cfg.Search.Interval != 24*time.Hour {
		t.Errorf("Search.Interval = %v, want 24h", cfg.Search.Interval)
	}
	if len(cfg.Search.Services) != 2 || cfg.Search.Services[0] != "ticketmaster" {
		t.Errorf("Search.Services = %v", cfg.Search.Services)
	}
	wantDB := filepath.Join(home, ".local", "share", "encore", "encore.db")
	if cfg.DBPath != wantDB {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, wantDB)
	}
}

func TestLoadEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("LASTFM_API_KEY", "plain-key")
	t.Setenv("ENCORE_TICKETMASTER_API_KEY", "prefixed-key")
	t.Setenv("ENCORE_POLL_INTERVAL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LastFM.APIKey != "plain-key" {
		t.Errorf("LastFM.APIKey = %q, want alias value", cfg.LastFM.APIKey)
	}
	if cfg.Ticketmaster.APIKey != "prefixed-key" {
		t.Errorf("Ticketmaster.APIKey = %q, want prefixed value", cfg.Ticketmaster.APIKey)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m", cfg.PollInterval)
	}
}

func TestLoadDotEnv(t *testing.T) {
	home := isolate(t)
	os.Unsetenv("BANDSINTOWN_APP_ID")
	t.Cleanup(func() { os.Unsetenv("BANDSINTOWN_APP_ID") })

	if err := os.WriteFile(filepath.Join(home, ".env"), []byte("BANDSINTOWN_APP_ID=from-dotenv\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bandsintown.AppID != "from-dotenv" {
		t.Errorf("Bandsintown.AppID = %q, want value from .env", cfg.Bandsintown.AppID)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.LastFM.SessionKey = "session"
	cfg.Muspy.UserID = "u123"
	cfg.Spotify.RefreshToken = "refresh"
	cfg.Search.Services = []string{"bandsintown"}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(home, ".config", "encore", "config.yaml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.LastFM.SessionKey != "session" || loaded.Muspy.UserID != "u123" || loaded.Spotify.RefreshToken != "refresh" {
		t.Errorf("credentials not saved: %+v", loaded)
	}
	if len(loaded.Search.Services) != 1 || loaded.Search.Services[0] != "bandsintown" {
		t.Errorf("Search.Services = %v", loaded.Search.Services)
	}
	if loaded.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v after round trip", loaded.PollInterval)
	}
}

func TestLoadFileMissing(t *testing.T) {
	home := isolate(t)
	if _, err := LoadFile(filepath.Join(home, "nope.yaml")); err == nil {
		t.Error("expected error for explicitly named missing file")
	}
}

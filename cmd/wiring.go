package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/cache"
	"github.com/jfmyers9/encore/internal/config"
	"github.com/jfmyers9/encore/internal/geo"
	"github.com/jfmyers9/encore/internal/notify"
	"github.com/jfmyers9/encore/internal/search"
	"github.com/jfmyers9/encore/internal/sources"
	"github.com/jfmyers9/encore/internal/store"
	"github.com/jfmyers9/encore/pkg/bandsintown"
	"github.com/jfmyers9/encore/pkg/lastfm"
	"github.com/jfmyers9/encore/pkg/musicbrainz"
	"github.com/jfmyers9/encore/pkg/muspy"
	"github.com/jfmyers9/encore/pkg/ticketmaster"
)

func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}

// lookupUser finds the user registered with chatID.
func lookupUser(ctx context.Context, st *store.Store, chatID int64) (*store.User, error) {
	u, err := st.GetUserByChatID(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no user with chat id %d (add one with 'encore users add')", chatID)
	}
	return u, err
}

// newCache opens the response cache. Failure degrades to no caching.
func newCache(cfg *config.Config, logger zerolog.Logger) *cache.Cache {
	c, err := cache.New(cfg.CacheDir, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Response cache disabled")
		return nil
	}
	return c
}

// buildSearcher wires the configured search services in order. Services
// without credentials are skipped.
func buildSearcher(cfg *config.Config, saver search.ConcertSaver, c *cache.Cache, logger zerolog.Logger) (*search.Searcher, error) {
	var services []search.Service
	for _, name := range cfg.Search.Services {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case sources.TicketmasterName:
			if cfg.Ticketmaster.APIKey == "" {
				logger.Warn().Msg("Ticketmaster API key not configured, skipping")
				continue
			}
			client, err := ticketmaster.NewClient(ticketmaster.Config{APIKey: cfg.Ticketmaster.APIKey})
			if err != nil {
				return nil, err
			}
			services = append(services, sources.NewTicketmaster(client, c, cfg.CacheTTL, logger))
		case sources.BandsintownName:
			if cfg.Bandsintown.AppID == "" {
				logger.Warn().Msg("Bandsintown app id not configured, skipping")
				continue
			}
			client, err := bandsintown.NewClient(bandsintown.Config{AppID: cfg.Bandsintown.AppID})
			if err != nil {
				return nil, err
			}
			services = append(services, sources.NewBandsintown(client, c, cfg.CacheTTL, logger))
		default:
			return nil, fmt.Errorf("unknown search service %q in configuration", name)
		}
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("no search service configured. Set TICKETMASTER_API_KEY or BANDSINTOWN_APP_ID")
	}
	return search.NewSearcher(saver, logger, services...), nil
}

func buildResolver(c *cache.Cache, logger zerolog.Logger) *geo.Resolver {
	return geo.NewResolver(geo.Config{Cache: c, Logger: logger})
}

// buildNotifier combines every configured notification channel. The log
// notifier is always present.
func buildNotifier(cfg *config.Config, logger zerolog.Logger) (notify.Notifier, error) {
	notifiers := notify.Multi{notify.Log{Logger: logger.With().Str("component", "notify").Logger()}}
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, bot.WithSkipGetMe())
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}
	if cfg.Webhook.URL != "" {
		wh, err := notify.NewWebhook(cfg.Webhook.URL, nil)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, wh)
	}
	return notifiers, nil
}

// debugLogger adapts zerolog to the lastfm client's Logger.
type debugLogger struct {
	logger zerolog.Logger
}

func (l debugLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func newLastFMClient(cfg *config.Config, logger zerolog.Logger) (*lastfm.Client, error) {
	if cfg.LastFM.APIKey == "" || cfg.LastFM.APISecret == "" {
		return nil, fmt.Errorf("Last.fm credentials not configured. Set LASTFM_API_KEY and LASTFM_API_SECRET or run 'encore auth'")
	}
	return lastfm.NewClient(lastfm.Config{
		APIKey:     cfg.LastFM.APIKey,
		APISecret:  cfg.LastFM.APISecret,
		SessionKey: cfg.LastFM.SessionKey,
		Logger:     debugLogger{logger.With().Str("component", "lastfm").Logger()},
	})
}

func newMuspyClient(cfg *config.Config) (*muspy.Client, error) {
	if cfg.Muspy.Username == "" || cfg.Muspy.Password == "" {
		return nil, fmt.Errorf("Muspy credentials not configured. Set MUSPY_USERNAME and MUSPY_PASSWORD")
	}
	return muspy.NewClient(muspy.Config{
		Username: cfg.Muspy.Username,
		Password: cfg.Muspy.Password,
		UserID:   cfg.Muspy.UserID,
	})
}

func newMusicBrainzClient(cfg *config.Config) *musicbrainz.Client {
	return musicbrainz.NewClient(musicbrainz.Config{UserAgent: cfg.MusicBrainz.UserAgent})
}

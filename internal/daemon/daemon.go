package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/notify"
	"github.com/jfmyers9/encore/internal/search"
	"github.com/jfmyers9/encore/internal/store"
)

// Config holds daemon configuration
type Config struct {
	PollInterval time.Duration // How often to check for due schedules
	StateFile    string        // Path to state persistence file
	PruneAfter   time.Duration // Age past which concerts are pruned on shutdown

	// DryRun searches without notifying, advancing schedules or writing
	// the state file. The searcher is expected to skip persistence too.
	DryRun bool

	// RunAll makes RunOnce treat every enabled schedule as due without
	// rewriting next_run.
	RunAll bool
}

// Store is the persistence the daemon needs.
type Store interface {
	DueSource
	MarkScheduleRun(ctx context.Context, id int64, ranAt time.Time) error
	GetUser(ctx context.Context, id int64) (*store.User, error)
	ListArtists(ctx context.Context, userID int64) ([]store.UserArtist, error)
	UnnotifiedConcerts(ctx context.Context, userID int64, ids []int64) ([]store.Concert, error)
	RecordNotifications(ctx context.Context, userID int64, concertIDs []int64) error
	PruneConcertsBefore(ctx context.Context, date string) (int64, error)
}

// Searcher runs an aggregated concert search.
type Searcher interface {
	Search(ctx context.Context, artist string) (*search.Result, error)
}

// scheduleVersion identifies one pending run of a schedule.
type scheduleVersion struct {
	lastRun, nextRun int64
}

// Daemon coordinates the poller, scheduled searches, and notifications
type Daemon struct {
	config   Config
	store    Store
	searcher Searcher
	resolver search.CountryResolver
	notifier notify.Notifier
	state    *State
	poller   *Poller
	logger   zerolog.Logger
	now      func() time.Time

	// handled remembers runs already processed so a poll that raced a
	// slow cycle does not repeat them. Only the update loop touches it.
	handled map[int64]scheduleVersion
}

// New creates a new Daemon instance
func New(cfg Config, st Store, searcher Searcher, resolver search.CountryResolver, notifier notify.Notifier, logger zerolog.Logger) (*Daemon, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.PruneAfter <= 0 {
		cfg.PruneAfter = 30 * 24 * time.Hour
	}

	state, err := NewState(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create state: %w", err)
	}

	return &Daemon{
		config:   cfg,
		store:    st,
		searcher: searcher,
		resolver: resolver,
		notifier: notifier,
		state:    state,
		poller:   NewPoller(st, cfg.PollInterval, logger),
		logger:   logger.With().Str("component", "daemon").Logger(),
		now:      time.Now,
		handled:  make(map[int64]scheduleVersion),
	}, nil
}

// State returns the daemon's run state.
func (d *Daemon) State() RunState {
	return d.state.GetState()
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// run is the main daemon loop
func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info().Msg("Starting daemon")
	if err := d.state.MarkStarted(d.now()); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to persist state")
	}

	var wg sync.WaitGroup
	updates := make(chan DueUpdate)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.poller.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("Poller error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.handleUpdates(ctx, updates)
	}()

	wg.Wait()

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// handleUpdates runs the schedules sent by the poller
func (d *Daemon) handleUpdates(ctx context.Context, updates <-chan DueUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			if update.Err != nil {
				d.logger.Debug().Err(update.Err).Msg("Schedule update error")
				continue
			}
			d.runCycle(ctx, d.fresh(update.Schedules))
		}
	}
}

// fresh drops schedules whose current run was already handled.
func (d *Daemon) fresh(schedules []store.ScheduledSearch) []store.ScheduledSearch {
	var out []store.ScheduledSearch
	for _, ss := range schedules {
		v := scheduleVersion{ss.LastRun.Unix(), ss.NextRun.Unix()}
		if prev, ok := d.handled[ss.ID]; ok && prev == v {
			continue
		}
		out = append(out, ss)
	}
	return out
}

// RunOnce runs every schedule that is due now and returns the cycle's stats.
func (d *Daemon) RunOnce(ctx context.Context) (CycleStats, error) {
	at := d.now()
	if d.config.RunAll {
		at = at.AddDate(100, 0, 0)
	}
	due, err := d.store.DueSchedules(ctx, at)
	if err != nil {
		return CycleStats{}, fmt.Errorf("failed to read due schedules: %w", err)
	}
	stats := d.runCycle(ctx, due)
	return stats, ctx.Err()
}

// runCycle runs the given schedules and records the cycle in the state file
func (d *Daemon) runCycle(ctx context.Context, schedules []store.ScheduledSearch) CycleStats {
	var stats CycleStats
	if len(schedules) == 0 {
		return stats
	}

	d.logger.Info().Int("schedules", len(schedules)).Msg("Running due searches")
	for _, ss := range schedules {
		if ctx.Err() != nil {
			break
		}
		d.runSchedule(ctx, ss, &stats)
	}

	if !d.config.DryRun {
		if err := d.state.RecordCycle(d.now(), stats); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to persist state")
		}
	}
	d.logger.Info().
		Int("searches", stats.SearchesRun).
		Int("failed", stats.SearchesFailed).
		Int("concerts", stats.ConcertsFound).
		Int("notified", stats.NotificationsSent).
		Msg("Cycle finished")
	return stats
}

// runSchedule searches, filters and notifies for one schedule. The schedule
// is advanced even when its search fails so a broken service cannot cause
// a hot loop. A cancelled context leaves it due.
func (d *Daemon) runSchedule(ctx context.Context, ss store.ScheduledSearch, stats *CycleStats) {
	log := d.logger.With().Int64("schedule_id", ss.ID).Int64("user_id", ss.UserID).Logger()

	if err := d.searchAndNotify(ctx, ss, stats, log); err != nil {
		if ctx.Err() != nil {
			return
		}
		stats.Err = err
		log.Error().Err(err).Msg("Scheduled search failed")
	}
	if d.config.DryRun {
		return
	}

	ranAt := d.now()
	if err := d.store.MarkScheduleRun(ctx, ss.ID, ranAt); err != nil {
		log.Error().Err(err).Msg("Failed to advance schedule")
		return
	}
	d.handled[ss.ID] = scheduleVersion{ss.LastRun.Unix(), ss.NextRun.Unix()}
}

func (d *Daemon) searchAndNotify(ctx context.Context, ss store.ScheduledSearch, stats *CycleStats, log zerolog.Logger) error {
	user, err := d.store.GetUser(ctx, ss.UserID)
	if err != nil {
		return err
	}

	artists, err := d.scheduleArtists(ctx, ss)
	if err != nil {
		return err
	}

	var concerts []store.Concert
	seen := make(map[string]bool)
	var lastErr error
	for _, artist := range artists {
		stats.SearchesRun++
		result, err := d.searcher.Search(ctx, artist)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.SearchesFailed++
			lastErr = err
			log.Warn().Err(err).Str("artist", artist).Msg("Search failed")
			if result == nil {
				continue
			}
		}
		for _, c := range result.Concerts {
			if seen[c.Key()] {
				continue
			}
			seen[c.Key()] = true
			// Concerts without an id could not be stored and cannot be
			// tracked as notified.
			if c.ID == 0 && !d.config.DryRun {
				continue
			}
			concerts = append(concerts, c)
		}
	}
	stats.ConcertsFound += len(concerts)

	filtered, err := search.FilterByCountry(ctx, concerts, user.CountryFilter, d.resolver, log)
	if err != nil {
		return err
	}

	if d.config.DryRun {
		log.Info().
			Int("concerts", len(filtered)).
			Bool("notifications_enabled", user.NotificationsEnabled).
			Msg("Dry run, not notifying")
		return lastErr
	}

	if user.NotificationsEnabled && len(filtered) > 0 {
		sent, err := d.notifyNew(ctx, *user, filtered)
		stats.NotificationsSent += sent
		if err != nil {
			return err
		}
	}
	return lastErr
}

func (d *Daemon) scheduleArtists(ctx context.Context, ss store.ScheduledSearch) ([]string, error) {
	if ss.ArtistName != "" {
		return []string{ss.ArtistName}, nil
	}
	followed, err := d.store.ListArtists(ctx, ss.UserID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(followed))
	for i, a := range followed {
		names[i] = a.Name
	}
	return names, nil
}

// notifyNew sends the concerts the user has not been told about and
// records them. Nothing is recorded when sending fails, so the next run
// retries.
func (d *Daemon) notifyNew(ctx context.Context, user store.User, concerts []store.Concert) (int, error) {
	ids := make([]int64, len(concerts))
	for i, c := range concerts {
		ids[i] = c.ID
	}

	pending, err := d.store.UnnotifiedConcerts(ctx, user.ID, ids)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := d.notifier.Notify(ctx, user, pending); err != nil {
		return 0, fmt.Errorf("failed to notify user %d: %w", user.ID, err)
	}

	sentIDs := make([]int64, len(pending))
	for i, c := range pending {
		sentIDs[i] = c.ID
	}
	if err := d.store.RecordNotifications(ctx, user.ID, sentIDs); err != nil {
		return len(pending), fmt.Errorf("failed to record notifications: %w", err)
	}
	return len(pending), nil
}

// Shutdown prunes concerts that are long past
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	cutoff := d.now().Add(-d.config.PruneAfter).Format("2006-01-02")
	pruned, err := d.store.PruneConcertsBefore(context.Background(), cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune concerts: %w", err)
	}
	if pruned > 0 {
		d.logger.Info().Int64("count", pruned).Str("before", cutoff).Msg("Pruned past concerts")
	}
	return nil
}

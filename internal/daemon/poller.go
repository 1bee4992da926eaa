package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/store"
)

// DueUpdate carries the schedules due at one poll
type DueUpdate struct {
	Schedules []store.ScheduledSearch
	Err       error // Error reading schedules
}

// DueSource lists schedules that should run.
type DueSource interface {
	DueSchedules(ctx context.Context, now time.Time) ([]store.ScheduledSearch, error)
}

// Poller checks for due scheduled searches at regular intervals
type Poller struct {
	source   DueSource
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewPoller creates a new Poller instance
func NewPoller(source DueSource, interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		source:   source,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run starts the polling loop and sends updates to the provided channel
// Blocks until context is cancelled
func (p *Poller) Run(ctx context.Context, updates chan<- DueUpdate) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Msg("Starting poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Poll immediately on start
	p.poll(ctx, updates)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx, updates)
		}
	}
}

// poll reads due schedules and sends them to the receiver
func (p *Poller) poll(ctx context.Context, updates chan<- DueUpdate) {
	due, err := p.source.DueSchedules(ctx, p.now())
	if err != nil {
		p.logger.Warn().Err(err).Msg("Error reading due schedules")
		select {
		case updates <- DueUpdate{Err: err}:
		case <-ctx.Done():
		}
		return
	}
	if len(due) == 0 {
		return
	}

	select {
	case updates <- DueUpdate{Schedules: due}:
		p.logger.Debug().Int("count", len(due)).Msg("Poll update")
	case <-ctx.Done():
	}
}

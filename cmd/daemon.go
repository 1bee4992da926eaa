package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/daemon"
	"github.com/jfmyers9/encore/internal/store"
)

var (
	daemonOnce   bool
	daemonDryRun bool
	daemonForce  bool
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled searches and send notifications",
	Long: `Run the scheduled search daemon.

The daemon will:
- Check for due scheduled searches every poll interval
- Search every service for the scheduled artists
- Keep only concerts in each user's country
- Notify users about concerts they have not been told about
- Handle graceful shutdown on SIGINT/SIGTERM

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for launchd).

With --once a single cycle runs and the command exits. --dry-run implies
--once and neither stores concerts nor sends notifications. --force makes
every enabled schedule due immediately. Combined with --dry-run it runs
every enabled schedule without touching when they next run.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().BoolVar(&daemonOnce, "once", false, "Run one cycle and exit")
	daemonCmd.Flags().BoolVar(&daemonDryRun, "dry-run", false, "Search without storing or notifying (implies --once)")
	daemonCmd.Flags().BoolVar(&daemonForce, "force", false, "Run all enabled schedules now")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, st, logger, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info().
		Str("version", version).
		Str("db", cfg.DBPath).
		Msg("Starting encore daemon")

	c := newCache(cfg, logger)
	searcher, err := buildSearcher(cfg, st, c, logger)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	searcher.SetDryRun(daemonDryRun)

	ctx := cmd.Context()
	runAll := false
	if daemonForce {
		if runAll, err = forceSchedules(ctx, st, daemonDryRun, logger); err != nil {
			return err
		}
	}

	if err := ensureParentDir(cfg.StateFile); err != nil {
		return err
	}
	daemonCfg := daemon.Config{
		PollInterval: cfg.PollInterval,
		StateFile:    cfg.StateFile,
		DryRun:       daemonDryRun,
		RunAll:       runAll,
	}
	d, err := daemon.New(daemonCfg, st, searcher, buildResolver(c, logger), notifier, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if daemonOnce || daemonDryRun {
		stats, err := d.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ran %d searches (%d failed), found %d concerts, sent %d notifications\n",
			stats.SearchesRun, stats.SearchesFailed, stats.ConcertsFound, stats.NotificationsSent)
		return nil
	}

	// Run daemon (blocks until shutdown signal)
	if err := d.Run(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	// Graceful shutdown
	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// forceSchedules makes every enabled schedule due now. A dry run writes
// nothing and reports that the daemon should run them all instead.
func forceSchedules(ctx context.Context, st *store.Store, dryRun bool, logger zerolog.Logger) (bool, error) {
	if dryRun {
		return true, nil
	}
	n, err := st.ForceAllDue(ctx)
	if err != nil {
		return false, err
	}
	logger.Info().Int64("schedules", n).Msg("Forced schedules due")
	return false, nil
}

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/daemon"
	"github.com/jfmyers9/encore/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon activity and database counters",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	state, err := daemon.ReadState(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("failed to read daemon state: %w", err)
	}
	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return err
	}
	schemaVersion, err := st.SchemaVersion()
	if err != nil {
		return err
	}

	installed := false
	if plistPath, err := daemon.GetPlistPath(); err == nil {
		if _, err := os.Stat(plistPath); err == nil {
			installed = true
		}
	}

	writeStatus(cmd.OutOrStdout(), state, stats, schemaVersion, installed)
	return nil
}

func writeStatus(w io.Writer, state daemon.RunState, stats store.Stats, schemaVersion int64, installed bool) {
	fmt.Fprintln(w, "Daemon")
	fmt.Fprintf(w, "  launchd agent:      %s\n", yesNo(installed))
	fmt.Fprintf(w, "  started:            %s\n", formatStatusTime(state.StartedAt))
	fmt.Fprintf(w, "  last cycle:         %s\n", formatStatusTime(state.LastCycle))
	fmt.Fprintf(w, "  cycles:             %d\n", state.Cycles)
	fmt.Fprintf(w, "  searches:           %d (%d failed)\n", state.SearchesRun, state.SearchesFailed)
	fmt.Fprintf(w, "  concerts found:     %d\n", state.ConcertsFound)
	fmt.Fprintf(w, "  notifications sent: %d\n", state.NotificationsSent)
	if state.LastError != "" {
		fmt.Fprintf(w, "  last error:         %s\n", state.LastError)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Database")
	fmt.Fprintf(w, "  schema version:     %d\n", schemaVersion)
	fmt.Fprintf(w, "  users:              %d\n", stats.Users)
	fmt.Fprintf(w, "  artists:            %d\n", stats.Artists)
	fmt.Fprintf(w, "  concerts:           %d\n", stats.Concerts)
	fmt.Fprintf(w, "  schedules:          %d\n", stats.Schedules)
	fmt.Fprintf(w, "  notifications:      %d\n", stats.Notifications)
}

func formatStatusTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s ago)", t.Local().Format("2006-01-02 15:04:05"), time.Since(t).Round(time.Second))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

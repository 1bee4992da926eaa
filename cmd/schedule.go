package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/store"
)

var scheduleEvery time.Duration

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled searches",
	Long: `Manage the searches the daemon runs on a schedule.

A scheduled search covers one artist, or every artist the user follows
when no artist is given. New concerts are sent to the user.`,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add [artist]",
	Short: "Schedule a search for one artist or all of a user's artists",
	RunE:  runScheduleAdd,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled searches",
	Args:  cobra.NoArgs,
	RunE:  runScheduleList,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a scheduled search",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRemove,
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a scheduled search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setScheduleEnabled(cmd, args[0], true)
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a scheduled search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setScheduleEnabled(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleRemoveCmd, scheduleEnableCmd, scheduleDisableCmd)

	addUserFlag(scheduleAddCmd, true)
	addUserFlag(scheduleListCmd, false)
	scheduleAddCmd.Flags().DurationVar(&scheduleEvery, "every", 0, "Interval between runs (default: search.interval from config)")
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	cfg, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	u, err := lookupUser(ctx, st, userFlag)
	if err != nil {
		return err
	}

	interval := scheduleEvery
	if interval == 0 {
		interval = cfg.Search.Interval
	}
	artist := strings.Join(args, " ")

	id, err := st.AddSchedule(ctx, u.ID, artist, interval)
	if err != nil {
		return err
	}
	target := artist
	if target == "" {
		target = "all followed artists"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Scheduled search %d for %s every %s\n", id, target, interval)
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	var userID int64
	if userFlag != 0 {
		u, err := lookupUser(ctx, st, userFlag)
		if err != nil {
			return err
		}
		userID = u.ID
	}

	schedules, err := st.ListSchedules(ctx, userID)
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scheduled searches.")
		return nil
	}

	users, err := chatIDs(cmd, st)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(schedules))
	for _, s := range schedules {
		rows = append(rows, scheduleRow(s, users[s.UserID]))
	}
	printTable(cmd.OutOrStdout(), []string{"ID", "USER", "ARTIST", "EVERY", "ENABLED", "LAST RUN", "NEXT RUN"}, rows)
	return nil
}

// chatIDs maps user ids to chat ids.
func chatIDs(cmd *cobra.Command, st *store.Store) (map[int64]int64, error) {
	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return nil, err
	}
	m := make(map[int64]int64, len(users))
	for _, u := range users {
		m[u.ID] = u.ChatID
	}
	return m, nil
}

func scheduleRow(s store.ScheduledSearch, chatID int64) []string {
	artist := s.ArtistName
	if artist == "" {
		artist = "(all)"
	}
	enabled := "yes"
	if !s.Enabled {
		enabled = "no"
	}
	return []string{
		strconv.FormatInt(s.ID, 10),
		strconv.FormatInt(chatID, 10),
		artist,
		s.Interval.String(),
		enabled,
		formatRunTime(s.LastRun, "never"),
		formatRunTime(s.NextRun, "now"),
	}
}

func formatRunTime(t time.Time, zero string) string {
	if t.IsZero() {
		return zero
	}
	return t.Local().Format("2006-01-02 15:04")
}

func parseScheduleID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule id %q", s)
	}
	return id, nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	id, err := parseScheduleID(args[0])
	if err != nil {
		return err
	}
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteSchedule(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed scheduled search %d\n", id)
	return nil
}

func setScheduleEnabled(cmd *cobra.Command, arg string, enabled bool) error {
	id, err := parseScheduleID(arg)
	if err != nil {
		return err
	}
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetScheduleEnabled(cmd.Context(), id, enabled); err != nil {
		return err
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Scheduled search %d %s\n", id, state)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/config"
	"github.com/jfmyers9/encore/internal/store"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
	Long: `Manage the users concerts are tracked for.

A user is identified by the Telegram chat id notifications are sent to.
Each user follows their own artists and may restrict notifications to a
single country.`,
}

var usersAddCmd = &cobra.Command{
	Use:   "add <chat-id> [username]",
	Short: "Add a user, or update the username of an existing one",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runUsersAdd,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove <chat-id>",
	Short: "Remove a user with their artists, schedules and notification history",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersRemove,
}

var usersSetCountryCmd = &cobra.Command{
	Use:   "set-country <chat-id> [country]",
	Short: "Restrict a user's notifications to one country",
	Long: `Restrict a user's notifications to one country.

The country may be an ISO 3166 alpha-2 code or a name ("DE", "Germany",
"uk"). Omit it to clear the filter.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUsersSetCountry,
}

var usersNotifyCmd = &cobra.Command{
	Use:   "notify <chat-id> <on|off>",
	Short: "Enable or disable notifications for a user",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersNotify,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersAddCmd, usersListCmd, usersRemoveCmd, usersSetCountryCmd, usersNotifyCmd)
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	chatID, err := parseChatID(args[0])
	if err != nil {
		return err
	}
	var username string
	if len(args) > 1 {
		username = args[1]
	}

	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.UpsertUser(cmd.Context(), store.User{ChatID: chatID, Username: username, NotificationsEnabled: true})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ User %d saved (id %d)\n", chatID, id)
	return nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No users. Add one with 'encore users add <chat-id>'.")
		return nil
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		notifications := "on"
		if !u.NotificationsEnabled {
			notifications = "off"
		}
		rows = append(rows, []string{
			strconv.FormatInt(u.ChatID, 10),
			u.Username,
			u.CountryFilter,
			notifications,
			u.CreatedAt.Format("2006-01-02"),
		})
	}
	printTable(cmd.OutOrStdout(), []string{"CHAT ID", "USERNAME", "COUNTRY", "NOTIFY", "ADDED"}, rows)
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	chatID, err := parseChatID(args[0])
	if err != nil {
		return err
	}
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := lookupUser(cmd.Context(), st, chatID)
	if err != nil {
		return err
	}
	if err := st.DeleteUser(cmd.Context(), u.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed user %d\n", chatID)
	return nil
}

func runUsersSetCountry(cmd *cobra.Command, args []string) error {
	chatID, err := parseChatID(args[0])
	if err != nil {
		return err
	}
	cfg, st, logger, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	u, err := lookupUser(ctx, st, chatID)
	if err != nil {
		return err
	}

	var code string
	if len(args) > 1 {
		code, err = resolveCountry(ctx, cfg, args[1], logger)
		if err != nil {
			return err
		}
	}
	if err := st.SetCountryFilter(ctx, u.ID, code); err != nil {
		return err
	}
	if code == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared country filter for user %d\n", chatID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ User %d now only hears about concerts in %s\n", chatID, code)
	}
	return nil
}

// resolveCountry turns a country name or code into its ISO2 code.
func resolveCountry(ctx context.Context, cfg *config.Config, input string, logger zerolog.Logger) (string, error) {
	code, err := buildResolver(newCache(cfg, logger), logger).CountryCode(ctx, input)
	if err != nil {
		return "", fmt.Errorf("unknown country %q: %w", input, err)
	}
	return code, nil
}

func runUsersNotify(cmd *cobra.Command, args []string) error {
	chatID, err := parseChatID(args[0])
	if err != nil {
		return err
	}
	var enabled bool
	switch args[1] {
	case "on", "true", "yes":
		enabled = true
	case "off", "false", "no":
	default:
		return fmt.Errorf("expected on or off, got %q", args[1])
	}

	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := lookupUser(cmd.Context(), st, chatID)
	if err != nil {
		return err
	}
	if err := st.SetNotificationsEnabled(cmd.Context(), u.ID, enabled); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Notifications %s for user %d\n", args[1], chatID)
	return nil
}

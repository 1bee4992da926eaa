package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/config"
	"github.com/jfmyers9/encore/pkg/lastfm"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Last.fm",
	Long: `Authenticate with Last.fm.

This command will guide you through the Last.fm authentication process:
1. You'll be prompted to enter your Last.fm API key and secret
2. A browser URL will be provided for you to authorize the application
3. After authorization, the session key and username are saved to your config file

You can get API credentials from: https://www.last.fm/api/account/create`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.LogFile, cfg.LogLevel)

	fmt.Fprintln(out, "Last.fm Authentication")
	fmt.Fprintln(out, "======================")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "You can get API credentials from: https://www.last.fm/api/account/create")
	fmt.Fprintln(out)

	apiKey, apiSecret := cfg.LastFM.APIKey, cfg.LastFM.APISecret
	if apiKey != "" && apiSecret != "" {
		fmt.Fprintf(out, "Found existing API credentials.\n")
		fmt.Fprintf(out, "API Key: %s\n", apiKey)
		fmt.Fprint(out, "\nUse existing credentials? [Y/n]: ")
		response, err := reader.ReadString('\n')
		if err != nil {
			response = "y"
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			apiKey, apiSecret = "", ""
		}
	}

	if apiKey == "" {
		if apiKey, err = prompt(reader, out, "Enter your Last.fm API Key: "); err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
	}
	if apiSecret == "" {
		if apiSecret, err = prompt(reader, out, "Enter your Last.fm API Secret: "); err != nil {
			return fmt.Errorf("failed to read API secret: %w", err)
		}
	}
	if apiKey == "" || apiSecret == "" {
		return fmt.Errorf("API key and secret are required")
	}

	cfg.LastFM.APIKey, cfg.LastFM.APISecret = apiKey, apiSecret
	client, err := newLastFMClient(cfg, logger)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\nGenerating authentication token...")
	token, err := client.Auth().GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate auth token: %w", err)
	}

	fmt.Fprintln(out, "\nPlease visit this URL to authorize encore:")
	fmt.Fprintf(out, "\n  %s\n\n", client.Auth().GetAuthURL(token.Token))
	fmt.Fprintln(out, "After authorizing, press Enter to continue...")
	_, _ = reader.ReadString('\n')

	fmt.Fprintln(out, "Retrieving session key...")
	session, err := getSession(cmd, client, token.Token, logger)
	if err != nil {
		return err
	}

	err = updateConfig(func(c *config.Config) {
		c.LastFM.APIKey = apiKey
		c.LastFM.APISecret = apiSecret
		c.LastFM.SessionKey = session.Key
		if c.LastFM.Username == "" {
			c.LastFM.Username = session.Username
		}
	})
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(out, "\n✓ Authenticated as %s\n", session.Username)
	fmt.Fprintf(out, "✓ Session key saved to %s/config.yaml\n", config.GetConfigDir())
	fmt.Fprintln(out, "\nYou can now import artists with 'encore artists import lastfm'.")
	return nil
}

// getSession exchanges the token, retrying while the user finishes
// authorizing in the browser.
func getSession(cmd *cobra.Command, client *lastfm.Client, token string, logger zerolog.Logger) (*lastfm.Session, error) {
	const maxRetries = 3
	retryDelay := 2 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		session, err := client.Auth().GetSession(cmd.Context(), token)
		if err == nil {
			return session, nil
		}
		lastErr = err
		logger.Debug().Err(err).Int("attempt", i+1).Msg("Session not ready")

		if i < maxRetries-1 {
			fmt.Fprintf(cmd.OutOrStdout(), "Failed to retrieve session (attempt %d/%d). Retrying in %v...\n",
				i+1, maxRetries, retryDelay)
			select {
			case <-cmd.Context().Done():
				return nil, cmd.Context().Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to get session key after %d attempts: %w", maxRetries, lastErr)
}

func prompt(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

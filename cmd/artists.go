package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/jfmyers9/encore/internal/artistsync"
	"github.com/jfmyers9/encore/internal/config"
	"github.com/jfmyers9/encore/pkg/lastfm"
)

var (
	artistsLookup bool
	importLimit   int
	importLoved   bool
	importUser    string
	importLogin   bool
)

var artistsCmd = &cobra.Command{
	Use:   "artists",
	Short: "Manage a user's followed artists",
}

var artistsAddCmd = &cobra.Command{
	Use:   "add <artist>...",
	Short: "Follow artists",
	Long: `Follow one or more artists.

With --lookup each name is checked against Last.fm, which corrects
misspellings and supplies the MusicBrainz id used by 'encore muspy sync'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runArtistsAdd,
}

var artistsRemoveCmd = &cobra.Command{
	Use:   "remove <artist>...",
	Short: "Stop following artists",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runArtistsRemove,
}

var artistsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List followed artists",
	Args:  cobra.NoArgs,
	RunE:  runArtistsList,
}

var artistsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import artists from Last.fm or Spotify",
}

var artistsImportLastFMCmd = &cobra.Command{
	Use:   "lastfm",
	Short: "Import a Last.fm user's top artists",
	Long: `Import a Last.fm user's top artists of all time.

With --loved the artists of the user's loved tracks are imported as well.`,
	Args: cobra.NoArgs,
	RunE: runImportLastFM,
}

var artistsImportSpotifyCmd = &cobra.Command{
	Use:   "spotify",
	Short: "Import the artists a Spotify account follows",
	Long: `Import the artists a Spotify account follows.

The first run opens the Spotify consent page and stores the resulting
token in the config file. Use --login to authorize a different account.`,
	Args: cobra.NoArgs,
	RunE: runImportSpotify,
}

func init() {
	rootCmd.AddCommand(artistsCmd)
	artistsCmd.AddCommand(artistsAddCmd, artistsRemoveCmd, artistsListCmd, artistsImportCmd)
	artistsImportCmd.AddCommand(artistsImportLastFMCmd, artistsImportSpotifyCmd)

	for _, c := range []*cobra.Command{artistsAddCmd, artistsRemoveCmd, artistsListCmd, artistsImportLastFMCmd, artistsImportSpotifyCmd} {
		addUserFlag(c, true)
	}
	artistsAddCmd.Flags().BoolVar(&artistsLookup, "lookup", false, "Correct names and fetch MusicBrainz ids from Last.fm")
	artistsImportLastFMCmd.Flags().StringVar(&importUser, "lastfm-user", "", "Last.fm username (default: lastfm.username from config)")
	artistsImportLastFMCmd.Flags().IntVar(&importLimit, "limit", 50, "Number of top artists to import")
	artistsImportLastFMCmd.Flags().BoolVar(&importLoved, "loved", false, "Also import artists of loved tracks")
	artistsImportSpotifyCmd.Flags().BoolVar(&importLogin, "login", false, "Authorize again even if a token is saved")
}

func runArtistsAdd(cmd *cobra.Command, args []string) error {
	cfg, st, logger, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	u, err := lookupUser(ctx, st, userFlag)
	if err != nil {
		return err
	}

	var client *lastfm.Client
	if artistsLookup {
		if client, err = newLastFMClient(cfg, logger); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, name := range args {
		var mbid string
		if client != nil {
			info, err := client.Artist().Info(ctx, name)
			if err != nil {
				logger.Warn().Err(err).Str("artist", name).Msg("Last.fm lookup failed, adding as given")
			} else {
				name, mbid = info.Name, info.MBID
			}
		}
		added, err := st.AddArtist(ctx, u.ID, name, mbid, "manual")
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(out, "✓ Following %s\n", name)
		} else {
			fmt.Fprintf(out, "Already following %s\n", name)
		}
	}
	return nil
}

func runArtistsRemove(cmd *cobra.Command, args []string) error {
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	u, err := lookupUser(ctx, st, userFlag)
	if err != nil {
		return err
	}
	for _, name := range args {
		if err := st.RemoveArtist(ctx, u.ID, name); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", name)
	}
	return nil
}

func runArtistsList(cmd *cobra.Command, args []string) error {
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := lookupUser(cmd.Context(), st, userFlag)
	if err != nil {
		return err
	}
	artists, err := st.ListArtists(cmd.Context(), u.ID)
	if err != nil {
		return err
	}
	if len(artists) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No artists followed yet.")
		return nil
	}

	rows := make([][]string, 0, len(artists))
	for _, a := range artists {
		rows = append(rows, []string{a.Name, a.Source, a.AddedAt.Format("2006-01-02"), a.MBID})
	}
	printTable(cmd.OutOrStdout(), []string{"ARTIST", "SOURCE", "ADDED", "MBID"}, rows)
	return nil
}

func runImportLastFM(cmd *cobra.Command, args []string) error {
	cfg, st, logger, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	lastfmUser := importUser
	if lastfmUser == "" {
		lastfmUser = cfg.LastFM.Username
	}
	if lastfmUser == "" {
		return fmt.Errorf("no Last.fm username given. Use --lastfm-user or set lastfm.username")
	}

	client, err := newLastFMClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	u, err := lookupUser(ctx, st, userFlag)
	if err != nil {
		return err
	}

	result, err := artistsync.New(st, logger).ImportLastFM(ctx, u.ID, client.User(), lastfmUser, importLimit, importLoved)
	if err != nil {
		return err
	}
	printImportResult(cmd, result)
	return nil
}

func runImportSpotify(cmd *cobra.Command, args []string) error {
	cfg, st, logger, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		return fmt.Errorf("Spotify credentials not configured. Set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
	}

	ctx := cmd.Context()
	u, err := lookupUser(ctx, st, userFlag)
	if err != nil {
		return err
	}

	auth := artistsync.SpotifyAuthenticator(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL)

	tok := &oauth2.Token{
		AccessToken:  cfg.Spotify.AccessToken,
		RefreshToken: cfg.Spotify.RefreshToken,
		TokenType:    cfg.Spotify.TokenType,
		Expiry:       cfg.Spotify.Expiry,
	}
	if importLogin || tok.RefreshToken == "" {
		state, err := randomState()
		if err != nil {
			return err
		}
		tok, err = artistsync.SpotifyLogin(ctx, auth, cfg.Spotify.RedirectURL, state, func(authURL string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Please visit this URL to authorize encore:")
			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s\n\n", authURL)
		})
		if err != nil {
			return err
		}
	}

	client := artistsync.NewSpotifyClient(ctx, auth, tok)
	result, err := artistsync.New(st, logger).ImportSpotify(ctx, u.ID, client)
	if err != nil {
		return err
	}

	// The client refreshes expired tokens; keep the latest one.
	if current, err := client.Token(); err == nil {
		tok = current
	}
	err = updateConfig(func(c *config.Config) {
		c.Spotify.AccessToken = tok.AccessToken
		c.Spotify.RefreshToken = tok.RefreshToken
		c.Spotify.TokenType = tok.TokenType
		c.Spotify.Expiry = tok.Expiry
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to save Spotify token")
	}

	printImportResult(cmd, result)
	return nil
}

func printImportResult(cmd *cobra.Command, result artistsync.ImportResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d new artists (%d already followed)\n", result.Added, result.Existing)
}

// updateConfig applies fn to the stored configuration and writes it back.
// Command line overrides are not persisted.
func updateConfig(fn func(*config.Config)) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	fn(cfg)
	if configFile != "" {
		return cfg.SaveAs(configFile)
	}
	return cfg.Save()
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/artistsync"
	"github.com/jfmyers9/encore/pkg/muspy"
)

var (
	releasesArtist string
	releasesLimit  int
)

var muspyCmd = &cobra.Command{
	Use:   "muspy",
	Short: "Follow artists on Muspy and list their releases",
}

var muspySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Follow a user's artists on Muspy",
	Long: `Follow every artist of a user on the configured Muspy account.

Artists without a MusicBrainz id are looked up on MusicBrainz first, and
the id is saved for next time. Artists that cannot be matched are reported
as failed.`,
	Args: cobra.NoArgs,
	RunE: runMuspySync,
}

var muspyReleasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List upcoming and recent releases of followed artists",
	Args:  cobra.NoArgs,
	RunE:  runMuspyReleases,
}

func init() {
	rootCmd.AddCommand(muspyCmd)
	muspyCmd.AddCommand(muspySyncCmd, muspyReleasesCmd)

	addUserFlag(muspySyncCmd, true)
	muspyReleasesCmd.Flags().StringVar(&releasesArtist, "mbid", "", "Only releases of the artist with this MusicBrainz id")
	muspyReleasesCmd.Flags().IntVarP(&releasesLimit, "limit", "n", 40, "Maximum number of releases (max 100)")
}

func runMuspySync(cmd *cobra.Command, args []string) error {
	cfg, st, logger, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := newMuspyClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	u, err := lookupUser(ctx, st, userFlag)
	if err != nil {
		return err
	}

	result, err := artistsync.New(st, logger).SyncMuspy(ctx, u.ID, client, newMusicBrainzClient(cfg))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Followed %d artists on Muspy (%d already followed, %d failed)\n",
		result.Followed, result.Skipped, result.Failed)
	return nil
}

func runMuspyReleases(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newMuspyClient(cfg)
	if err != nil {
		return err
	}

	releases, err := client.Releases(cmd.Context(), muspy.ReleaseQuery{MBID: releasesArtist, Limit: releasesLimit})
	if err != nil {
		return err
	}
	releases = muspy.DedupeReleases(releases)
	if len(releases) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No releases found.")
		return nil
	}

	rows := make([][]string, 0, len(releases))
	for _, r := range releases {
		rows = append(rows, []string{r.Date, r.Artist.Name, r.Type, r.Title})
	}
	printTable(cmd.OutOrStdout(), []string{"DATE", "ARTIST", "TYPE", "TITLE"}, rows)
	return nil
}

package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/search"
	"github.com/jfmyers9/encore/internal/store"
)

var (
	searchCountry  string
	searchDryRun   bool
	searchServices []string
)

var searchCmd = &cobra.Command{
	Use:   "search <artist>",
	Short: "Search for an artist's concerts",
	Long: `Search every configured service for an artist's upcoming concerts.

Results are merged, stored in the database and printed. Use --dry-run to
print without storing, --country to only show concerts in one country, and
--service to query a subset of services.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchCountry, "country", "c", "", "Only show concerts in this country (code or name)")
	searchCmd.Flags().BoolVar(&searchDryRun, "dry-run", false, "Do not store results")
	searchCmd.Flags().StringSliceVarP(&searchServices, "service", "s", nil, "Services to query (default: search.services from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, st, logger, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	artist := strings.Join(args, " ")
	c := newCache(cfg, logger)

	searcher, err := buildSearcher(cfg, st, c, logger)
	if err != nil {
		return err
	}
	if searcher, err = searcher.Only(searchServices...); err != nil {
		return err
	}
	searcher.SetDryRun(searchDryRun)

	ctx := cmd.Context()
	result, err := searcher.Search(ctx, artist)
	if err != nil {
		return err
	}

	concerts := result.Concerts
	if searchCountry != "" {
		concerts, err = search.FilterByCountry(ctx, concerts, searchCountry, buildResolver(c, logger), logger)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for name, ferr := range result.Failed {
		fmt.Fprintf(out, "Warning: %s failed: %v\n", name, ferr)
	}
	if len(concerts) == 0 {
		fmt.Fprintf(out, "No concerts found for %s\n", artist)
		return nil
	}
	printConcerts(out, concerts)

	if searchDryRun {
		fmt.Fprintf(out, "\n%d concerts found (dry run, nothing stored)\n", len(concerts))
	} else {
		fmt.Fprintf(out, "\n%d concerts found, %d new\n", len(concerts), result.Inserted)
	}
	return nil
}

// printConcerts writes concerts as a table sorted by date.
func printConcerts(w io.Writer, concerts []store.Concert) {
	sorted := make([]store.Concert, len(concerts))
	copy(sorted, concerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].Time < sorted[j].Time
	})

	rows := make([][]string, 0, len(sorted))
	for _, c := range sorted {
		country := c.CountryCode
		if country == "" {
			country = c.Country
		}
		rows = append(rows, []string{c.Date, c.Artist, c.Venue, c.City, country, c.Source, c.URL})
	}
	printTable(w, []string{"DATE", "ARTIST", "VENUE", "CITY", "COUNTRY", "SOURCE", "URL"}, rows)
}

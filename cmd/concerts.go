package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kennygrant/sanitize"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/store"
)

var (
	concertsArtist  string
	concertsCountry string
	concertsSource  string
	concertsFrom    string
	concertsTo      string
	concertsLimit   uint64
	concertsPast    bool
	exportDir       string
)

var concertsCmd = &cobra.Command{
	Use:   "concerts",
	Short: "Browse stored concerts",
}

var concertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored concerts",
	Long: `List stored concerts ordered by date.

Only upcoming concerts are shown unless --past or --from is given.`,
	Args: cobra.NoArgs,
	RunE: runConcertsList,
}

var concertsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored concerts as one JSON file per artist",
	Args:  cobra.NoArgs,
	RunE:  runConcertsExport,
}

func init() {
	rootCmd.AddCommand(concertsCmd)
	concertsCmd.AddCommand(concertsListCmd, concertsExportCmd)

	for _, c := range []*cobra.Command{concertsListCmd, concertsExportCmd} {
		c.Flags().StringVarP(&concertsArtist, "artist", "a", "", "Only concerts of this artist")
		c.Flags().StringVarP(&concertsCountry, "country", "c", "", "Only concerts in this country (code or name)")
		c.Flags().StringVar(&concertsSource, "source", "", "Only concerts found by this service")
		c.Flags().StringVar(&concertsFrom, "from", "", "Earliest date (YYYY-MM-DD)")
		c.Flags().StringVar(&concertsTo, "to", "", "Latest date (YYYY-MM-DD)")
		c.Flags().BoolVar(&concertsPast, "past", false, "Include concerts that already happened")
	}
	concertsListCmd.Flags().Uint64VarP(&concertsLimit, "limit", "n", 100, "Maximum number of concerts (0 for all)")
	concertsExportCmd.Flags().StringVarP(&exportDir, "dir", "d", "concerts", "Directory to write the files to")
}

// concertFilter builds the filter selected by the command line flags.
func concertFilter(now time.Time) store.ConcertFilter {
	f := store.ConcertFilter{
		Artist:  concertsArtist,
		Country: concertsCountry,
		Source:  concertsSource,
		From:    concertsFrom,
		To:      concertsTo,
	}
	if f.From == "" && !concertsPast {
		f.From = now.Format("2006-01-02")
	}
	return f
}

func runConcertsList(cmd *cobra.Command, args []string) error {
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	f := concertFilter(time.Now())
	f.Limit = concertsLimit
	concerts, err := st.ListConcerts(cmd.Context(), f)
	if err != nil {
		return err
	}
	if len(concerts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No concerts stored. Run 'encore search <artist>' first.")
		return nil
	}
	printConcerts(cmd.OutOrStdout(), concerts)
	return nil
}

func runConcertsExport(cmd *cobra.Command, args []string) error {
	_, st, _, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	concerts, err := st.ListConcerts(cmd.Context(), concertFilter(time.Now()))
	if err != nil {
		return err
	}
	files, err := exportConcerts(exportDir, concerts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d concerts to %d files in %s\n", len(concerts), len(files), exportDir)
	return nil
}

// exportedConcert is the JSON form of a concert.
type exportedConcert struct {
	Artist      string `json:"artist"`
	Name        string `json:"name,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Venue       string `json:"venue"`
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code,omitempty"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source"`
}

// exportConcerts writes the concerts of each artist to its own file in dir
// and returns the paths written, sorted.
func exportConcerts(dir string, concerts []store.Concert) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	byFile := make(map[string][]exportedConcert)
	for _, c := range concerts {
		name := sanitize.BaseName(c.Artist)
		if name == "" {
			// names made only of punctuation, like "!!!"
			name = "unnamed"
		}
		path := filepath.Join(dir, name+".json")
		byFile[path] = append(byFile[path], exportedConcert{
			Artist:      c.Artist,
			Name:        c.Name,
			Date:        c.Date,
			Time:        c.Time,
			Venue:       c.Venue,
			City:        c.City,
			Country:     c.Country,
			CountryCode: c.CountryCode,
			URL:         c.URL,
			Source:      c.Source,
		})
	}

	paths := make([]string, 0, len(byFile))
	for path, list := range byFile {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("error marshalling concerts: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("error writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

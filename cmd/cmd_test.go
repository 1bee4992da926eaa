package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/store"
)

// credentialVars are cleared so a developer's environment does not leak
// into the commands under test.
var credentialVars = []string{
	"LASTFM_API_KEY", "LASTFM_API_SECRET", "TICKETMASTER_API_KEY",
	"BANDSINTOWN_APP_ID", "MUSPY_USERNAME", "MUSPY_PASSWORD", "MUSPY_USER_ID",
	"TELEGRAM_BOT_TOKEN", "SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "WEBHOOK_URL",
}

// setupCLI isolates HOME and returns the database path to pass with --db.
func setupCLI(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range credentialVars {
		t.Setenv(name, "")
	}
	t.Chdir(home)
	return filepath.Join(home, "encore.db")
}

// resetFlags restores flag variables, which cobra keeps between executions.
func resetFlags() {
	configFile, dbPath, logFile, logLevel = "", "", "", ""
	userFlag = 0
	artistsLookup = false
	searchCountry, searchDryRun, searchServices = "", false, nil
	concertsArtist, concertsCountry, concertsSource = "", "", ""
	concertsFrom, concertsTo, concertsPast = "", "", false
	concertsLimit = 100
	exportDir = "concerts"
	scheduleEvery = 0
	daemonOnce, daemonDryRun, daemonForce = false, false, false
}

func execute(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--db", db, "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func mustExecute(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := execute(t, db, args...)
	if err != nil {
		t.Fatalf("encore %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestUsersCommands(t *testing.T) {
	db := setupCLI(t)

	mustExecute(t, db, "users", "add", "42", "ana")
	mustExecute(t, db, "users", "add", "7")
	mustExecute(t, db, "users", "notify", "7", "off")

	out := mustExecute(t, db, "users", "list")
	if !strings.Contains(out, "ana") || !strings.Contains(out, "42") {
		t.Errorf("users list missing ana:\n%s", out)
	}
	if !strings.Contains(out, "off") {
		t.Errorf("users list missing disabled notifications:\n%s", out)
	}

	mustExecute(t, db, "users", "remove", "7")
	if out := mustExecute(t, db, "users", "list"); strings.Contains(out, "\n7 ") {
		t.Errorf("removed user still listed:\n%s", out)
	}

	if _, err := execute(t, db, "users", "remove", "7"); err == nil || !strings.Contains(err.Error(), "no user with chat id 7") {
		t.Errorf("expected unknown user error, got %v", err)
	}
	if _, err := execute(t, db, "users", "add", "abc"); err == nil {
		t.Error("expected error for a non-numeric chat id")
	}
	if _, err := execute(t, db, "users", "notify", "42", "maybe"); err == nil {
		t.Error("expected error for an invalid notify state")
	}
}

func TestArtistsCommands(t *testing.T) {
	db := setupCLI(t)
	mustExecute(t, db, "users", "add", "42")

	out := mustExecute(t, db, "artists", "add", "-u", "42", "Radiohead", "Björk")
	if strings.Count(out, "Following") != 2 {
		t.Errorf("expected two new artists:\n%s", out)
	}
	if out := mustExecute(t, db, "artists", "add", "-u", "42", "Radiohead"); !strings.Contains(out, "Already following") {
		t.Errorf("expected duplicate to be reported:\n%s", out)
	}

	mustExecute(t, db, "artists", "remove", "-u", "42", "Radiohead")
	out = mustExecute(t, db, "artists", "list", "-u", "42")
	if !strings.Contains(out, "Björk") || strings.Contains(out, "Radiohead") {
		t.Errorf("unexpected artist list:\n%s", out)
	}

	if _, err := execute(t, db, "artists", "list", "-u", "99"); err == nil {
		t.Error("expected error for an unknown user")
	}
	if _, err := execute(t, db, "artists", "add", "-u", "42", "--lookup", "Muse"); err == nil {
		t.Error("expected --lookup to require Last.fm credentials")
	}
}

func TestScheduleCommands(t *testing.T) {
	db := setupCLI(t)
	mustExecute(t, db, "users", "add", "42")

	mustExecute(t, db, "schedule", "add", "-u", "42")
	mustExecute(t, db, "schedule", "add", "-u", "42", "--every", "6h", "Radiohead")

	out := mustExecute(t, db, "schedule", "list")
	if !strings.Contains(out, "(all)") || !strings.Contains(out, "24h0m0s") {
		t.Errorf("default schedule missing:\n%s", out)
	}
	if !strings.Contains(out, "Radiohead") || !strings.Contains(out, "6h0m0s") {
		t.Errorf("artist schedule missing:\n%s", out)
	}

	mustExecute(t, db, "schedule", "disable", "2")
	if out := mustExecute(t, db, "schedule", "list", "-u", "42"); !strings.Contains(out, " no ") {
		t.Errorf("expected disabled schedule:\n%s", out)
	}
	mustExecute(t, db, "schedule", "remove", "1")
	if out := mustExecute(t, db, "schedule", "list"); strings.Contains(out, "(all)") {
		t.Errorf("removed schedule still listed:\n%s", out)
	}

	if _, err := execute(t, db, "schedule", "add", "-u", "42", "--every", "10s"); err == nil {
		t.Error("expected error for an interval under a minute")
	}
	if _, err := execute(t, db, "schedule", "enable", "x"); err == nil {
		t.Error("expected error for an invalid schedule id")
	}
}

func saveConcerts(t *testing.T, db string, concerts ...store.Concert) {
	t.Helper()
	st, err := store.Open(db)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	for i := range concerts {
		if _, err := st.SaveConcert(context.Background(), &concerts[i]); err != nil {
			t.Fatalf("SaveConcert: %v", err)
		}
	}
}

func TestConcertsCommands(t *testing.T) {
	db := setupCLI(t)

	if out := mustExecute(t, db, "concerts", "list"); !strings.Contains(out, "No concerts stored") {
		t.Errorf("expected empty message:\n%s", out)
	}

	saveConcerts(t, db,
		store.Concert{Artist: "The National", Venue: "Zenith", City: "Paris", Country: "France", CountryCode: "FR", Date: "2099-05-01", Source: "ticketmaster"},
		store.Concert{Artist: "The National", Venue: "O2", City: "London", Country: "United Kingdom", CountryCode: "GB", Date: "2099-05-03", Source: "bandsintown"},
		store.Concert{Artist: "AC/DC", Venue: "Olympiastadion", City: "Berlin", Country: "Germany", CountryCode: "DE", Date: "2099-07-10", Source: "ticketmaster"},
		store.Concert{Artist: "AC/DC", Venue: "Wembley", City: "London", Country: "United Kingdom", CountryCode: "GB", Date: "2000-07-10", Source: "ticketmaster"},
	)

	out := mustExecute(t, db, "concerts", "list")
	if !strings.Contains(out, "Zenith") || !strings.Contains(out, "Olympiastadion") {
		t.Errorf("expected upcoming concerts:\n%s", out)
	}
	if strings.Contains(out, "Wembley") {
		t.Errorf("past concert listed without --past:\n%s", out)
	}
	if out := mustExecute(t, db, "concerts", "list", "--past", "--country", "GB"); !strings.Contains(out, "Wembley") || strings.Contains(out, "Zenith") {
		t.Errorf("unexpected country listing:\n%s", out)
	}

	dir := filepath.Join(t.TempDir(), "export")
	mustExecute(t, db, "concerts", "export", "--dir", dir)

	data, err := os.ReadFile(filepath.Join(dir, "The-National.json"))
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	var exported []exportedConcert
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("invalid export: %v", err)
	}
	if len(exported) != 2 || exported[0].City != "Paris" {
		t.Errorf("unexpected export %+v", exported)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected one file per artist, got %d", len(entries))
	}
	for _, e := range entries {
		if strings.ContainsAny(e.Name(), `/\`) {
			t.Errorf("unsafe file name %q", e.Name())
		}
	}
}

func TestSearchRequiresService(t *testing.T) {
	db := setupCLI(t)

	_, err := execute(t, db, "search", "Radiohead")
	if err == nil || !strings.Contains(err.Error(), "no search service configured") {
		t.Errorf("expected missing service error, got %v", err)
	}
}

func TestStatusAndMigrate(t *testing.T) {
	db := setupCLI(t)
	mustExecute(t, db, "users", "add", "42")

	out := mustExecute(t, db, "status")
	flat := strings.Join(strings.Fields(out), " ")
	if !strings.Contains(flat, "users: 1") || !strings.Contains(flat, "cycles: 0") {
		t.Errorf("unexpected status:\n%s", out)
	}

	if out := mustExecute(t, db, "migrate", "status"); !strings.Contains(out, "Schema version: 1") {
		t.Errorf("unexpected migrate status:\n%s", out)
	}
}

func TestForceSchedules(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	userID, err := st.UpsertUser(ctx, store.User{ChatID: 42, NotificationsEnabled: true})
	if err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if _, err := st.AddSchedule(ctx, userID, "", 24*time.Hour); err != nil {
		t.Fatalf("AddSchedule failed: %v", err)
	}
	now := time.Now()
	due, err := st.DueSchedules(ctx, now)
	if err != nil || len(due) != 1 {
		t.Fatalf("expected a due schedule, got %v, %v", due, err)
	}
	if err := st.MarkScheduleRun(ctx, due[0].ID, now); err != nil {
		t.Fatalf("MarkScheduleRun failed: %v", err)
	}

	tests := []struct {
		name       string
		dryRun     bool
		wantRunAll bool
		wantDue    int
	}{
		{"dry run leaves schedules alone", true, true, 0},
		{"force makes schedules due", false, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runAll, err := forceSchedules(ctx, st, tt.dryRun, zerolog.Nop())
			if err != nil {
				t.Fatalf("forceSchedules failed: %v", err)
			}
			if runAll != tt.wantRunAll {
				t.Errorf("expected runAll=%v, got %v", tt.wantRunAll, runAll)
			}
			due, err := st.DueSchedules(ctx, time.Now())
			if err != nil {
				t.Fatalf("DueSchedules failed: %v", err)
			}
			if len(due) != tt.wantDue {
				t.Errorf("expected %d due schedules, got %d", tt.wantDue, len(due))
			}
		})
	}
}

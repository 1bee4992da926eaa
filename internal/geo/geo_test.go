package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/encore/internal/cache"
)

func newCountriesServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		switch r.URL.Path {
		case "/countries/iso":
			_, _ = w.Write([]byte(`{"error":false,"msg":"countries and ISO codes retrieved","data":[
				{"name":"Netherlands","Iso2":"NL","Iso3":"NLD"},
				{"name":"Germany","Iso2":"DE","Iso3":"DEU"},
				{"name":"Côte d'Ivoire","Iso2":"CI","Iso3":"CIV"}
			]}`))
		case "/countries/cities":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			if body["country"] != "Netherlands" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":true,"msg":"country not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"error":false,"msg":"cities retrieved","data":["Amsterdam","Utrecht"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCountryCode(t *testing.T) {
	server := newCountriesServer(t, nil)
	r := NewResolver(Config{BaseURL: server.URL, Logger: zerolog.Nop()})
	ctx := context.Background()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"NL", "NL", false},
		{"nl", "NL", false},
		{"Netherlands", "NL", false},
		{"  germany ", "DE", false},
		{"côte d'ivoire", "CI", false},
		{"UK", "GB", false},
		{"Spain", "ES", false}, // only in the built-in table
		{"ZZ", "ZZ", false},
		{"Atlantis", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.CountryCode(ctx, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CountryCode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CountryCode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCountryCodeFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":true,"msg":"down"}`))
	}))
	defer server.Close()

	r := NewResolver(Config{BaseURL: server.URL, Logger: zerolog.Nop()})
	c, err := r.Lookup(context.Background(), "netherlands")
	if err != nil {
		t.Fatalf("expected built-in table to resolve, got %v", err)
	}
	if c.ISO2 != "NL" || c.Name != "Netherlands" {
		t.Errorf("unexpected country %+v", c)
	}
}

func TestLookupRemembersFailedCountryList(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	now := time.Date(2030, 1, 15, 9, 0, 0, 0, time.UTC)
	r := NewResolver(Config{BaseURL: server.URL, Logger: zerolog.Nop()})
	r.now = func() time.Time { return now }
	ctx := context.Background()

	for _, name := range []string{"Germany", "Netherlands", "Iceland", "Atlantis"} {
		_, _ = r.Lookup(ctx, name)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected one request while the list is failing, got %d", got)
	}

	now = now.Add(listRetryDelay)
	if c, err := r.Lookup(ctx, "Germany"); err != nil || c.ISO2 != "DE" {
		t.Errorf("expected built-in DE, got %+v, %v", c, err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected a retry after the delay, got %d requests", got)
	}
}

func TestCities(t *testing.T) {
	var calls int32
	server := newCountriesServer(t, &calls)
	c, err := cache.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	r := NewResolver(Config{BaseURL: server.URL, Cache: c, Logger: zerolog.Nop()})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cities, err := r.Cities(ctx, "Netherlands")
		if err != nil {
			t.Fatalf("Cities failed: %v", err)
		}
		if len(cities) != 2 || cities[0] != "Amsterdam" {
			t.Errorf("unexpected cities %v", cities)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected second call to be cached, got %d requests", got)
	}

	if _, err := r.Cities(ctx, "Atlantis"); err == nil {
		t.Error("expected error for unknown country")
	}
}

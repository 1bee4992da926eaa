package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchArtist(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		body    string
		wantID  string
		wantErr error
	}{
		{
			name:  "exact name beats higher score",
			query: "Portishead",
			body: `{"artists":[
				{"id":"other","name":"Portishead Tribute","score":100},
				{"id":"8f6bd1e4","name":"Portishead","score":95}
			]}`,
			wantID: "8f6bd1e4",
		},
		{
			name:   "best score when no exact match",
			query:  "Sigur Ros",
			body:   `{"artists":[{"id":"low","name":"Sigur","score":91},{"id":"f6f2326f","name":"Sigur Rós","score":100}]}`,
			wantID: "f6f2326f",
		},
		{
			name:    "scores below threshold",
			query:   "Nobody",
			body:    `{"artists":[{"id":"x","name":"Nobody Special","score":40}]}`,
			wantErr: ErrNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") == "" {
					t.Error("missing User-Agent")
				}
				if r.URL.Query().Get("fmt") != "json" {
					t.Errorf("expected fmt=json, got %q", r.URL.Query().Get("fmt"))
				}
				want := fmt.Sprintf(`artist:"%s"`, tt.query)
				if q := r.URL.Query().Get("query"); q != want {
					t.Errorf("expected query %q, got %q", want, q)
				}
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c := NewClient(Config{BaseURL: server.URL, Interval: time.Millisecond})
			artist, err := c.SearchArtist(context.Background(), tt.query)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SearchArtist: %v", err)
			}
			if artist.ID != tt.wantID {
				t.Errorf("expected id %q, got %q", tt.wantID, artist.ID)
			}
		})
	}
}

func TestSearchArtist_EmptyName(t *testing.T) {
	c := NewClient(Config{})
	if _, err := c.SearchArtist(context.Background(), "  "); err == nil {
		t.Error("expected error for blank name")
	}
}

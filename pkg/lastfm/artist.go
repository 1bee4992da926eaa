package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ArtistService exposes the read-only artist.* methods.
type ArtistService struct {
	client *Client
}

// ArtistInfo is the subset of artist.getInfo used for artist lookups.
type ArtistInfo struct {
	Name      string
	MBID      string
	URL       string
	Listeners int
	Tags      []string
}

// Info returns metadata for the named artist. Misspelled names are
// corrected by Last.fm.
func (s *ArtistService) Info(ctx context.Context, name string) (*ArtistInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("lastfm: artist is required")
	}

	params := map[string]string{
		"artist":      name,
		"autocorrect": "1",
	}
	body, err := s.client.call(ctx, "artist.getInfo", params, callRead)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Artist struct {
			Name  string `json:"name"`
			MBID  string `json:"mbid"`
			URL   string `json:"url"`
			Stats struct {
				Listeners string `json:"listeners"`
			} `json:"stats"`
			Tags struct {
				Tag []struct {
					Name string `json:"name"`
				} `json:"tag"`
			} `json:"tags"`
		} `json:"artist"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse artist info: %w", err)
	}

	listeners, _ := strconv.Atoi(resp.Artist.Stats.Listeners)
	info := &ArtistInfo{
		Name:      resp.Artist.Name,
		MBID:      resp.Artist.MBID,
		URL:       resp.Artist.URL,
		Listeners: listeners,
	}
	for _, t := range resp.Artist.Tags.Tag {
		info.Tags = append(info.Tags, t.Name)
	}
	return info, nil
}

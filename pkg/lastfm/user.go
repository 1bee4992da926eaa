package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// UserService exposes the read-only user.* methods.
type UserService struct {
	client *Client
}

// maxPageSize is the largest page Last.fm serves for user charts.
const maxPageSize = 200

// pageAttr is the "@attr" paging block. Last.fm encodes its numbers as strings.
type pageAttr struct {
	Page       string `json:"page"`
	TotalPages string `json:"totalPages"`
}

func (p pageAttr) last(page int) bool {
	total, err := strconv.Atoi(p.TotalPages)
	return err != nil || page >= total
}

// TopArtists returns up to limit of the user's top artists for period.
// An empty period means PeriodOverall.
func (s *UserService) TopArtists(ctx context.Context, user, period string, limit int) ([]Artist, error) {
	if user == "" {
		return nil, fmt.Errorf("lastfm: user is required")
	}
	if period == "" {
		period = PeriodOverall
	}
	if limit <= 0 {
		limit = 50
	}

	var artists []Artist
	for page := 1; len(artists) < limit; page++ {
		params := map[string]string{
			"user":   user,
			"period": period,
			"limit":  strconv.Itoa(min(limit, maxPageSize)),
			"page":   strconv.Itoa(page),
		}
		body, err := s.client.call(ctx, "user.getTopArtists", params, callRead)
		if err != nil {
			return nil, err
		}

		var resp struct {
			TopArtists struct {
				Artist []struct {
					Name      string `json:"name"`
					MBID      string `json:"mbid"`
					PlayCount string `json:"playcount"`
					URL       string `json:"url"`
				} `json:"artist"`
				Attr pageAttr `json:"@attr"`
			} `json:"topartists"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("lastfm: failed to parse top artists: %w", err)
		}

		for _, a := range resp.TopArtists.Artist {
			plays, _ := strconv.Atoi(a.PlayCount)
			artists = append(artists, Artist{
				Name:      a.Name,
				MBID:      a.MBID,
				PlayCount: plays,
				URL:       a.URL,
			})
		}

		if len(resp.TopArtists.Artist) == 0 || resp.TopArtists.Attr.last(page) {
			break
		}
	}

	if len(artists) > limit {
		artists = artists[:limit]
	}
	return artists, nil
}

// LovedTracks returns up to limit of the user's loved tracks, newest first.
func (s *UserService) LovedTracks(ctx context.Context, user string, limit int) ([]LovedTrack, error) {
	if user == "" {
		return nil, fmt.Errorf("lastfm: user is required")
	}
	if limit <= 0 {
		limit = 50
	}

	var tracks []LovedTrack
	for page := 1; len(tracks) < limit; page++ {
		params := map[string]string{
			"user":  user,
			"limit": strconv.Itoa(min(limit, maxPageSize)),
			"page":  strconv.Itoa(page),
		}
		body, err := s.client.call(ctx, "user.getLovedTracks", params, callRead)
		if err != nil {
			return nil, err
		}

		var resp struct {
			LovedTracks struct {
				Track []struct {
					Name   string `json:"name"`
					MBID   string `json:"mbid"`
					Artist struct {
						Name string `json:"name"`
						MBID string `json:"mbid"`
					} `json:"artist"`
					Date struct {
						UTS string `json:"uts"`
					} `json:"date"`
				} `json:"track"`
				Attr pageAttr `json:"@attr"`
			} `json:"lovedtracks"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("lastfm: failed to parse loved tracks: %w", err)
		}

		for _, t := range resp.LovedTracks.Track {
			var lovedAt time.Time
			if uts, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil {
				lovedAt = time.Unix(uts, 0)
			}
			tracks = append(tracks, LovedTrack{
				Name:       t.Name,
				MBID:       t.MBID,
				Artist:     t.Artist.Name,
				ArtistMBID: t.Artist.MBID,
				LovedAt:    lovedAt,
			})
		}

		if len(resp.LovedTracks.Track) == 0 || resp.LovedTracks.Attr.last(page) {
			break
		}
	}

	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

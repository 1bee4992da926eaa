package artistsync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// FollowedArtists is the part of the Spotify client used for imports.
type FollowedArtists interface {
	CurrentUsersFollowedArtists(ctx context.Context, opts ...spotify.RequestOption) (*spotify.FullArtistCursorPage, error)
}

// ImportSpotify adds every artist the Spotify account follows.
func (s *Syncer) ImportSpotify(ctx context.Context, userID int64, client FollowedArtists) (ImportResult, error) {
	var result ImportResult

	opts := []spotify.RequestOption{spotify.Limit(50)}
	for {
		page, err := client.CurrentUsersFollowedArtists(ctx, opts...)
		if err != nil {
			return result, fmt.Errorf("failed to fetch followed artists: %w", err)
		}
		for _, a := range page.Artists {
			if err := s.add(ctx, userID, a.Name, "", SourceSpotify, &result); err != nil {
				return result, err
			}
		}
		if len(page.Artists) == 0 || page.Cursor.After == "" {
			break
		}
		opts = []spotify.RequestOption{spotify.Limit(50), spotify.After(page.Cursor.After)}
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int("added", result.Added).
		Int("existing", result.Existing).
		Msg("imported artists from Spotify")
	return result, nil
}

// SpotifyAuthenticator builds the OAuth authenticator for reading followed
// artists.
func SpotifyAuthenticator(clientID, clientSecret, redirectURL string) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithRedirectURL(redirectURL),
		spotifyauth.WithScopes(spotifyauth.ScopeUserFollowRead),
	)
}

// NewSpotifyClient returns a client that refreshes tok as needed.
func NewSpotifyClient(ctx context.Context, auth *spotifyauth.Authenticator, tok *oauth2.Token) *spotify.Client {
	return spotify.New(auth.Client(ctx, tok))
}

// SpotifyLogin runs the authorization code flow. It serves the redirect URL
// locally, hands the consent URL to show, and waits for the callback.
func SpotifyLogin(ctx context.Context, auth *spotifyauth.Authenticator, redirectURL, state string, show func(authURL string)) (*oauth2.Token, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect url: %w", err)
	}

	type outcome struct {
		tok *oauth2.Token
		err error
	}
	done := make(chan outcome, 1)
	// Only the first outcome counts. Later callbacks, such as a browser
	// refresh, must not block their handler.
	report := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(u.Path, func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != state {
			http.NotFound(w, r)
			return
		}
		tok, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Couldn't get token", http.StatusForbidden)
			report(outcome{err: err})
			return
		}
		fmt.Fprintln(w, "Login complete, you can close this window.")
		report(outcome{tok: tok})
	})

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			report(outcome{err: err})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	show(auth.AuthURL(state))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("spotify login failed: %w", o.err)
		}
		return o.tok, nil
	}
}

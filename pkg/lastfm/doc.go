// Package lastfm provides a client library for the Last.fm API 2.0.
//
// # Overview
//
// The client speaks the JSON flavour of the API. Read-only methods are sent
// as unsigned GET requests; authentication methods are sent as signed POST
// requests carrying an api_sig computed by Signature.
//
// # Authentication
//
// Last.fm uses a token-based authentication flow:
//
//  1. Get a token from Last.fm
//  2. Direct the user to authorize the token
//  3. Exchange the token for a session key
//  4. Store and reuse the session key
//
// Example:
//
//	token, err := client.Auth().GetToken(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Please visit:", client.Auth().GetAuthURL(token.Token))
//
//	session, err := client.Auth().GetSession(ctx, token.Token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.SetSessionKey(session.Key)
//
// # User library
//
//	artists, err := client.User().TopArtists(ctx, "rj", lastfm.Period12Month, 100)
//	loved, err := client.User().LovedTracks(ctx, "rj", 200)
//
// # Error Handling
//
// API failures are returned as *Error. Temporary errors (service offline,
// temporarily unavailable, rate limited) are retried with exponential
// backoff before being returned:
//
//	var lastfmErr *lastfm.Error
//	if errors.As(err, &lastfmErr) && lastfmErr.Code == lastfm.ErrCodeInvalidAPIKey {
//	    // fix configuration
//	}
//
// # API Coverage
//
// Currently implemented:
//   - Authentication (auth.getToken, auth.getSession)
//   - User library (user.getTopArtists, user.getLovedTracks)
package lastfm

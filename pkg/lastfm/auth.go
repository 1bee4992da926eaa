package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// AuthService provides authentication operations for the Last.fm API.
type AuthService struct {
	client *Client
}

// GetToken requests an authentication token from Last.fm.
//
// This is the first step in the authentication flow. After obtaining a token,
// the user must authorize it by visiting the URL returned by GetAuthURL.
//
// Example:
//
//	token, err := client.Auth().GetToken(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Visit:", client.Auth().GetAuthURL(token.Token))
func (a *AuthService) GetToken(ctx context.Context) (*Token, error) {
	body, err := a.client.call(ctx, "auth.getToken", nil, callSigned)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse token response: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("lastfm: empty token in response")
	}

	return &Token{Token: resp.Token}, nil
}

// GetAuthURL returns the URL where users authorize the token.
func (a *AuthService) GetAuthURL(token string) string {
	return "https://www.last.fm/api/auth/?api_key=" + url.QueryEscape(a.client.apiKey) + "&token=" + url.QueryEscape(token)
}

// GetSession exchanges an authorized token for a session key.
//
// After the user has authorized the token at the URL from GetAuthURL,
// call this method to exchange the token for a permanent session key.
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("lastfm: token is required")
	}

	body, err := a.client.call(ctx, "auth.getSession", map[string]string{"token": token}, callSigned)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Session struct {
			Name       string `json:"name"`
			Key        string `json:"key"`
			Subscriber int    `json:"subscriber"`
		} `json:"session"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse session response: %w", err)
	}

	return &Session{
		Key:        resp.Session.Key,
		Username:   resp.Session.Name,
		Subscriber: resp.Session.Subscriber == 1,
	}, nil
}

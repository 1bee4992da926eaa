package lastfm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestClient points a client at server and shortens the retry backoff.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: "test-secret",
		BaseURL:   serverURL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.backoff = time.Millisecond
	return client
}

// TestAuthService_GetToken tests the GetToken method.
func TestAuthService_GetToken(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		statusCode  int
		wantToken   string
		wantErr     bool
		errContains string
	}{
		{
			name:       "success",
			response:   `{"token":"test-token-123"}`,
			statusCode: http.StatusOK,
			wantToken:  "test-token-123",
		},
		{
			name:        "api error - invalid api key",
			response:    `{"error":10,"message":"Invalid API key - You must be granted a valid key by last.fm"}`,
			statusCode:  http.StatusForbidden,
			wantErr:     true,
			errContains: "error 10",
		},
		{
			name:        "temporary error exhausts retries",
			response:    `{"error":11,"message":"Service Offline"}`,
			statusCode:  http.StatusOK,
			wantErr:     true,
			errContains: "error 11",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST request, got %s", r.Method)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
					t.Errorf("expected Content-Type application/x-www-form-urlencoded, got %s", ct)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatalf("failed to parse form: %v", err)
				}
				if method := r.FormValue("method"); method != "auth.getToken" {
					t.Errorf("expected method auth.getToken, got %s", method)
				}
				if apiKey := r.FormValue("api_key"); apiKey != "test-api-key" {
					t.Errorf("expected api_key test-api-key, got %s", apiKey)
				}
				if format := r.FormValue("format"); format != "json" {
					t.Errorf("expected format json, got %s", format)
				}
				if sig := r.FormValue("api_sig"); sig != "9c275d105f3b7875a25d8bf5b4cd3274" {
					t.Errorf("unexpected api_sig %q", sig)
				}

				w.WriteHeader(tt.statusCode)
				if _, err := w.Write([]byte(tt.response)); err != nil {
					t.Fatalf("failed to write response body: %v", err)
				}
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			token, err := client.Auth().GetToken(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error to contain %q, got %q", tt.errContains, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token.Token != tt.wantToken {
				t.Errorf("expected token %q, got %q", tt.wantToken, token.Token)
			}
		})
	}
}

// TestAuthService_GetAuthURL tests the GetAuthURL method.
func TestAuthService_GetAuthURL(t *testing.T) {
	client, err := NewClient(Config{
		APIKey:    "my-api-key",
		APISecret: "my-secret",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	url := client.Auth().GetAuthURL("test-token-123")

	expectedURL := "https://www.last.fm/api/auth/?api_key=my-api-key&token=test-token-123"
	if url != expectedURL {
		t.Errorf("expected URL %q, got %q", expectedURL, url)
	}
}

// TestAuthService_GetSession tests the GetSession method.
func TestAuthService_GetSession(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantKey        string
		wantUsername   string
		wantSubscriber bool
		wantErr        bool
		errContains    string
	}{
		{
			name:           "success - subscriber",
			response:       `{"session":{"name":"testuser","key":"session-key-abc123","subscriber":1}}`,
			wantKey:        "session-key-abc123",
			wantUsername:   "testuser",
			wantSubscriber: true,
		},
		{
			name:         "success - non-subscriber",
			response:     `{"session":{"name":"freeuser","key":"free-session-key","subscriber":0}}`,
			wantKey:      "free-session-key",
			wantUsername: "freeuser",
		},
		{
			name:        "unauthorized token",
			response:    `{"error":14,"message":"Unauthorized Token - This token has not been authorized"}`,
			wantErr:     true,
			errContains: "error 14",
		},
		{
			name:        "expired token",
			response:    `{"error":15,"message":"This token has expired"}`,
			wantErr:     true,
			errContains: "error 15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("failed to parse form: %v", err)
				}
				if method := r.FormValue("method"); method != "auth.getSession" {
					t.Errorf("expected method auth.getSession, got %s", method)
				}
				if token := r.FormValue("token"); token != "test-token" {
					t.Errorf("expected token test-token, got %s", token)
				}
				if sig := r.FormValue("api_sig"); sig != "c3b3e61eb13c87a69f8628488321f560" {
					t.Errorf("unexpected api_sig %q", sig)
				}

				if _, err := w.Write([]byte(tt.response)); err != nil {
					t.Fatalf("failed to write response body: %v", err)
				}
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			session, err := client.Auth().GetSession(context.Background(), "test-token")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error to contain %q, got %q", tt.errContains, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if session.Key != tt.wantKey {
				t.Errorf("expected key %q, got %q", tt.wantKey, session.Key)
			}
			if session.Username != tt.wantUsername {
				t.Errorf("expected username %q, got %q", tt.wantUsername, session.Username)
			}
			if session.Subscriber != tt.wantSubscriber {
				t.Errorf("expected subscriber %v, got %v", tt.wantSubscriber, session.Subscriber)
			}
		})
	}
}

// TestAuthService_GetToken_ContextCancellation tests context cancellation.
func TestAuthService_GetToken_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"token":"test-token"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Auth().GetToken(ctx)
	if err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
	if !strings.Contains(err.Error(), "context deadline exceeded") {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

// TestAuthService_Retry tests retry logic for temporary errors.
func TestAuthService_Retry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			_, _ = w.Write([]byte(`{"error":11,"message":"Service Offline"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"test-token-retry"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	token, err := client.Auth().GetToken(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if token.Token != "test-token-retry" {
		t.Errorf("expected token test-token-retry, got %q", token.Token)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

// TestAuthService_ServerError tests handling of HTTP 5xx errors.
func TestAuthService_ServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Service Unavailable"))
			return
		}
		_, _ = w.Write([]byte(`{"token":"test-token-503"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	token, err := client.Auth().GetToken(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if token.Token != "test-token-503" {
		t.Errorf("expected token test-token-503, got %q", token.Token)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

// Example_authFlow demonstrates the complete authentication flow.
func Example_authFlow() {
	client, err := NewClient(Config{
		APIKey:    "your-api-key",
		APISecret: "your-api-secret",
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	token, err := client.Auth().GetToken(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Please visit this URL to authorize the application:")
	fmt.Println(client.Auth().GetAuthURL(token.Token))

	session, err := client.Auth().GetSession(ctx, token.Token)
	if err != nil {
		log.Fatal(err)
	}

	client.SetSessionKey(session.Key)
	fmt.Printf("Authenticated as: %s\n", session.Username)
}

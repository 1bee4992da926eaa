package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// callKind selects how a request is sent and signed.
type callKind int

const (
	// callRead is an unsigned GET, used by read-only methods.
	callRead callKind = iota
	// callSigned is a signed POST without a session (auth.getSession).
	callSigned
	// callAuthenticated is a signed POST carrying the session key.
	callAuthenticated
)

// apiErrorBody is the JSON shape of a failed Last.fm response.
type apiErrorBody struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

const maxRetries = 3

// call makes an HTTP request to the Last.fm API with retry logic and
// returns the raw JSON body of a successful response.
//
// Network errors, 5xx responses and temporary API errors are retried with
// exponential backoff. Context cancellation aborts the wait between attempts.
func (c *Client) call(ctx context.Context, method string, params map[string]string, kind callKind) ([]byte, error) {
	reqParams := make(map[string]string, len(params)+4)
	for k, v := range params {
		reqParams[k] = v
	}
	reqParams["method"] = method
	reqParams["api_key"] = c.apiKey

	if kind == callAuthenticated {
		if c.sessionKey == "" {
			return nil, ErrNoSessionKey
		}
		reqParams["sk"] = c.sessionKey
	}

	form := url.Values{}
	for k, v := range reqParams {
		form.Set(k, v)
	}
	if kind != callRead {
		form.Set("api_sig", Signature(reqParams, c.apiSecret))
	}
	form.Set("format", "json")

	var lastErr error
	backoff := c.backoff

	for i := 0; i < maxRetries; i++ {
		c.logDebugf("lastfm: calling %s (attempt %d/%d)", method, i+1, maxRetries)

		req, err := c.newRequest(ctx, form, kind)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if shouldRetryNetworkError(err) && i < maxRetries-1 {
				c.logDebugf("lastfm: network error, retrying: %v", err)
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, fmt.Errorf("http request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", resp.Status)
			if i < maxRetries-1 {
				c.logDebugf("lastfm: server error, retrying: %v", lastErr)
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, lastErr
		}

		// Last.fm reports API errors with a JSON body, sometimes on a 4xx status.
		var apiErr apiErrorBody
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Error != 0 {
			lastfmErr := &Error{Code: apiErr.Error, Message: apiErr.Message}
			if isRetryableError(lastfmErr) && i < maxRetries-1 {
				c.logDebugf("lastfm: temporary error, retrying: %v", lastfmErr)
				lastErr = lastfmErr
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, lastfmErr
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		c.logDebugf("lastfm: %s succeeded", method)
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// newRequest builds a GET for read calls and a form POST for signed calls.
func (c *Client) newRequest(ctx context.Context, form url.Values, kind callKind) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if kind == callRead {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+form.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "encore/1.0")
	return req, nil
}

// shouldRetryNetworkError checks if a network error is retryable.
func shouldRetryNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// nextBackoff calculates the next backoff duration with exponential increase.
// Maximum backoff is capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}

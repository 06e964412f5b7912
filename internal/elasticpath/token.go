package elasticpath

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Token lifetime guard; the API issues tokens valid for one hour.
const tokenTTL = 55 * time.Minute

type tokenCache struct {
	mu      sync.Mutex
	value   string
	expires time.Time
	now     func() time.Time
}

// accessToken returns a cached bearer token, fetching a fresh one via
// the implicit grant when the cache is empty or stale.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokens.mu.Lock()
	defer c.tokens.mu.Unlock()

	now := time.Now
	if c.tokens.now != nil {
		now = c.tokens.now
	}
	if c.tokens.value != "" && now().Before(c.tokens.expires) {
		return c.tokens.value, nil
	}

	form := url.Values{
		"client_id":  {c.clientID},
		"grant_type": {"implicit"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("commerce: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("commerce: fetch token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("commerce: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			Status: resp.StatusCode,
			Method: http.MethodPost,
			Path:   "/oauth/access_token",
			Body:   string(raw),
		}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("commerce: decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("commerce: token response carried no access_token")
	}

	ttl := tokenTTL
	if parsed.ExpiresIn > 0 {
		// Refresh slightly ahead of the server-side expiry.
		ttl = time.Duration(parsed.ExpiresIn)*time.Second - 5*time.Minute
		if ttl <= 0 {
			ttl = time.Duration(parsed.ExpiresIn) * time.Second / 2
		}
	}
	c.tokens.value = parsed.AccessToken
	c.tokens.expires = now().Add(ttl)
	return c.tokens.value, nil
}

// Package elasticpath is a client for the ElasticPath (moltin) commerce
// API: product catalog, per-chat carts, customers, and flow entries.
package elasticpath

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	coreconfig "github.com/intrening/pizzabot/core/config"
	"github.com/intrening/pizzabot/core/logger"
)

// Client talks to the commerce backend. All methods are safe for
// concurrent use; the access token is refreshed lazily under a lock.
type Client struct {
	baseURL  string
	clientID string
	http     *http.Client

	tokens tokenCache
}

// New builds a Client from configuration. The HTTP client carries the
// configured request timeout.
func New(cfg coreconfig.CommerceConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// APIError carries the HTTP status of a failed commerce call.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("commerce: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("commerce: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("commerce: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, "commerce", "api.fail",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("commerce: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("commerce: read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Status: resp.StatusCode,
			Method: method,
			Path:   path,
			Body:   logger.SanitizeLimit(string(raw), 200),
		}
		logger.Warn(ctx, "commerce", "api.fail",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return apiErr
	}

	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "commerce", "api.ok",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.Int64("took_ms", time.Since(start).Milliseconds()))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("commerce: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

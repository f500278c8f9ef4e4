// Package api is the client for the finance backend's REST API.
//
// Every call takes an explicit *Session; the client itself holds no user
// state. Records are normalized into core types at this boundary.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"finreport/internal/core"
)

const refreshPath = "/auth/refresh-token"

// Config represents the configuration for the backend client.
type Config struct {
	BaseURL    string        // e.g. http://localhost:8080/api
	Timeout    time.Duration // Default: 30 seconds
	HTTPClient *http.Client
	Aliases    core.TypeAliases // Default: core.DefaultTypeAliases()
}

// Client talks to the finance backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	aliases    core.TypeAliases
	validate   *validator.Validate
}

// NewClient creates a new backend client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	aliases := cfg.Aliases
	if aliases == nil {
		aliases = core.DefaultTypeAliases()
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		aliases:    aliases,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a JSON request. On a 401 it refreshes the session token once and
// retries the request once; a failed refresh clears the session.
func (c *Client) do(ctx context.Context, s *Session, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = b
	}

	token := sessionToken(s)
	resp, err := c.send(ctx, token, method, path, query, payload)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && s != nil && path != refreshPath {
		drain(resp)
		if err := c.refresh(ctx, s, token); err != nil {
			slog.WarnContext(ctx, "Token refresh failed", "path", path, "error", err)
			s.Clear()
			return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
		}
		resp, err = c.send(ctx, s.Token(), method, path, query, payload)
		if err != nil {
			return err
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, token, method, path string, query url.Values, payload []byte) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	slog.DebugContext(ctx, "Backend request",
		"method", method, "path", path, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// refresh swaps the session token for a fresh one. usedToken is the token
// the failed request carried; when another goroutine already replaced it the
// call is a no-op, and when a concurrent refresh failed and cleared the
// session there is nothing left to refresh.
func (c *Client) refresh(ctx context.Context, s *Session, usedToken string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	current := s.Token()
	if current == "" {
		return ErrUnauthorized
	}
	if current != usedToken {
		return nil
	}
	_, err := c.RefreshToken(ctx, s)
	return err
}

func (c *Client) check(req any) error {
	if err := c.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ValidationError{Fields: fieldErrors(verrs)}
		}
		return err
	}
	return nil
}

func sessionToken(s *Session) string {
	if s == nil {
		return ""
	}
	return s.Token()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// Package api is the client for the task management REST backend.
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
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/tgienger/taskboard/internal/auth"
)

// DefaultTimeout bounds every request that does not already carry a deadline
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 64 << 10

// Client talks to the backend. Requests under /auth go out anonymously;
// everything else carries the bearer token from the token source.
type Client struct {
	base    string
	anon    *http.Client
	authed  *http.Client
	tokens  oauth2.TokenSource
	timeout time.Duration
	log     *slog.Logger

	gets singleflight.Group
}

// Config configures a Client
type Config struct {
	BaseURL string
	Tokens  oauth2.TokenSource
	Timeout time.Duration
	Logger  *slog.Logger

	// Transport is the underlying round tripper; http.DefaultTransport when nil
	Transport http.RoundTripper
}

// New creates a Client
func New(cfg Config) *Client {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// oauth2.NewClient would wrap the source in a ReuseTokenSource, which
	// keeps serving a cached token after sign-out. The store is read on
	// every request instead.
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		anon:    &http.Client{Transport: base},
		authed:  &http.Client{Transport: &oauth2.Transport{Source: cfg.Tokens, Base: base}},
		tokens:  cfg.Tokens,
		timeout: timeout,
		log:     logger,
	}
}

// get fetches path into out. Identical GETs made with the same token while
// one is in flight share that request. The shared request is detached from
// the caller that started it and bounded by the client timeout; each caller
// stops waiting when its own ctx is done.
func (c *Client) get(ctx context.Context, path string, out any) error {
	ch := c.gets.DoChan(c.flightKey(path), func() (any, error) {
		return c.send(context.WithoutCancel(ctx), c.authed, http.MethodGet, path, nil)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return decode(res.Val.([]byte), out)
	case <-ctx.Done():
		return fmt.Errorf("GET %s: %w", path, ctx.Err())
	}
}

// flightKey scopes a GET to the credentials it would be sent with
func (c *Client) flightKey(path string) string {
	if c.tokens == nil {
		return path
	}
	tok, err := c.tokens.Token()
	if err != nil || tok == nil {
		return "anonymous " + path
	}
	return tok.AccessToken + " " + path
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.doWith(ctx, c.authed, method, path, in, out)
}

func (c *Client) doWith(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	body, err := c.send(ctx, hc, method, path, in)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send performs one request and returns the response body of a 2xx reply
func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, in any) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Debug("api request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		if errors.Is(err, auth.ErrNoToken) || errors.Is(err, auth.ErrExpired) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", reqID,
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newError(method, path, resp.StatusCode, raw)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// Package httptransport is the net/http implementation of
// transport.Transport for the ERP REST API. It resolves paths against a base
// URL, attaches the bearer token, unwraps the API's response envelope, and
// rate-limits outgoing requests.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/colonyops/erpsync/internal/core/logging"
	"github.com/colonyops/erpsync/internal/core/transport"
)

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "erpsync/1.0"
	maxErrorBody   = 4 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int

	Headers map[string]string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to the ERP API.
type Client struct {
	http    *http.Client
	base    *url.URL
	headers map[string]string
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.RWMutex
	token string
}

var _ transport.Transport = (*Client)(nil)

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		base:    base,
		headers: cfg.Headers,
		token:   cfg.Token,
		logger:  logging.Component("http"),
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken replaces the bearer token. An empty token sends no Authorization
// header.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// URL resolves path against the base URL. The path may carry a query string.
func (c *Client) URL(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return "", fmt.Errorf("path %q must be relative", path)
	}

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	fail := func(msg string, err error) error {
		return &transport.Error{Method: method, Path: path, Message: msg, Err: err}
	}

	target, err := c.URL(path)
	if err != nil {
		return nil, fail(err.Error(), err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fail("encode request body", err)
		}
		reader = bytes.NewReader(b)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fail("rate limit wait", err)
		}
	}

	reqID := logging.GetRequestID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, reqID)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fail("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", reqID)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Ctx(ctx).Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, fail(networkMessage(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transport.Error{Method: method, Path: path, Status: resp.StatusCode, Message: "read response body", Err: err}
	}

	c.logger.Debug().Ctx(ctx).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("request")

	env, wrapped := parseEnvelope(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &transport.Error{Method: method, Path: path, Status: resp.StatusCode}
		switch {
		case wrapped && env.Error != nil:
			te.Code = env.Error.Code
			te.Message = env.Error.Message
		default:
			te.Message = plainMessage(raw, resp.StatusCode)
		}
		return nil, te
	}

	if !wrapped {
		return raw, nil
	}
	if !*env.Success {
		te := &transport.Error{Method: method, Path: path, Status: resp.StatusCode, Message: "request was not successful"}
		if env.Error != nil {
			te.Code = env.Error.Code
			te.Message = env.Error.Message
		}
		return nil, te
	}
	return env.Data, nil
}

func networkMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err.Error()
	}
	return err.Error()
}

func plainMessage(body []byte, status int) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" || strings.HasPrefix(msg, "<") {
		return http.StatusText(status)
	}
	return msg
}

package catalog

import (
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

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"
)

// Defaults applied by NewClient.
const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 3

	// MaxBodyBytes bounds listing and content responses.
	MaxBodyBytes = 16 << 20
)

// Config configures a Client.
type Config struct {
	// ListingURL serves the listing. Required.
	ListingURL string

	// APIURL is the base of the authenticated API used for backup
	// deletion. Empty disables DeleteBackup.
	APIURL string

	// Token is the bearer token for APIURL.
	Token string

	// Timeout bounds each HTTP attempt. Default: DefaultTimeout.
	Timeout time.Duration

	// RatePerSecond paces requests. Zero or negative means unlimited.
	RatePerSecond float64

	// Retries is the number of retries after the first attempt.
	// Negative means DefaultRetries.
	Retries int
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ErrNoAPI is returned by DeleteBackup when no API URL is configured.
var ErrNoAPI = errors.New("catalog API URL not configured")

// Client talks to the remote catalog.
//
// Thread-safety: safe for concurrent use.
type Client struct {
	cfg        Config
	listingURL *url.URL
	http       *http.Client
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left as given.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithBackOff replaces the retry schedule. The retry count from Config
// still applies on top of it.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient validates cfg and creates a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ListingURL == "" {
		return nil, fmt.Errorf("catalog: listing URL is required")
	}
	u, err := url.Parse(cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: listing URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalog: listing URL %q: scheme must be http or https", cfg.ListingURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = DefaultRetries
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		if b := int(cfg.RatePerSecond); b > burst {
			burst = b
		}
	}

	c := &Client{
		cfg:        cfg,
		listingURL: u,
		http:       &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		newBackOff: defaultBackOff,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = time.Minute
	return b
}

// List fetches the remote listing.
func (c *Client) List(ctx context.Context) (Listing, error) {
	body, err := c.getWithRetry(ctx, c.listingURL.String())
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	listing, dropped, err := ParseListing(body)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	if dropped > 0 {
		c.logger.Warn("listing entries dropped", "dropped", dropped, "reason", "invalid entry or repeated id")
	}
	c.logger.Debug("listed catalog", "entries", len(listing))
	return listing, nil
}

// Fetch downloads the raw content document of entry.
func (c *Client) Fetch(ctx context.Context, entry Entry) ([]byte, error) {
	loc, err := c.Resolve(entry.Location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", entry.ID, err)
	}
	body, err := c.getWithRetry(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", entry.ID, err)
	}
	return body, nil
}

// Resolve turns a content location into an absolute URL.
func (c *Client) Resolve(location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", fmt.Errorf("empty content location")
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("content location %q: %w", location, err)
	}
	return c.listingURL.ResolveReference(ref).String(), nil
}

// DeleteBackup deletes the remote backup of workflow id. Not retried: it
// runs on behalf of a user action, which receives the failure.
func (c *Client) DeleteBackup(ctx context.Context, id string) error {
	if c.cfg.APIURL == "" {
		return ErrNoAPI
	}
	endpoint := strings.TrimSuffix(c.cfg.APIURL, "/") + "/me/workflows?id=" + url.QueryEscape(id)

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("delete backup %s: %w", id, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("delete backup %s: %w", id, err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("delete backup %s: %w", id, err)
	}
	c.logger.Info("deleted remote backup", "workflow_id", id)
	return nil
}

// getWithRetry performs a paced GET, retrying transient failures.
func (c *Client) getWithRetry(ctx context.Context, target string) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		b, err := c.do(req)
		if err == nil {
			body = b
			return nil
		}

		var se *StatusError
		switch {
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case errors.As(err, &se) && !se.Temporary():
			return backoff.Permanent(err)
		}
		c.logger.Debug("catalog request failed, retrying",
			"url", target,
			"attempt", attempt,
			"error", err)
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.cfg.Retries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}
	return body, nil
}

// errorMessage extracts {"message": "..."} from an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return ""
}

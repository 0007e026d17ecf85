// Package httpclient is the outbound HTTP client shared by the geocoders, the
// IP locator and any other provider integration.
//
// Every request carries a deadline: the caller's, or DefaultTimeout when the
// context has none. Requests are never retried.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"sync"
	"time"
)

const (
	// DefaultTimeout applies when the request context has no deadline.
	DefaultTimeout = 10 * time.Second

	defaultMaxIdleConns        = 50
	defaultMaxIdleConnsPerHost = 5
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 5 * time.Second
	defaultDialTimeout         = 5 * time.Second
	defaultDialKeepAlive       = 30 * time.Second

	defaultUserAgent = "ScreamGuard"

	// maxErrorBody bounds how much of a failed response is kept for the error message.
	maxErrorBody = 512
)

// Config holds configuration for creating a Client.
type Config struct {
	// DefaultTimeout is applied when the request context has no deadline
	DefaultTimeout time.Duration

	// UserAgent is added to requests that do not set one
	UserAgent string

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration

	// Transport replaces the pooled transport, e.g. with httpmock.NewMockTransport()
	Transport http.RoundTripper
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:      DefaultTimeout,
		UserAgent:           defaultUserAgent,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
	}
}

// Client wraps http.Client with deadline enforcement, User-Agent injection and
// observability hooks. Safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string

	hookMu        sync.RWMutex
	beforeRequest func(*http.Request)
	afterResponse func(*http.Request, *http.Response, error)
}

// New creates a Client. A nil cfg uses DefaultConfig; zero fields take defaults.
func New(cfg *Config) *Client {
	c := DefaultConfig()
	if cfg != nil {
		c = withDefaults(*cfg)
	}

	transport := c.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultDialTimeout,
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        c.MaxIdleConns,
			MaxIdleConnsPerHost: c.MaxIdleConnsPerHost,
			IdleConnTimeout:     c.IdleConnTimeout,
			TLSHandshakeTimeout: c.TLSHandshakeTimeout,
		}
	}

	return &Client{
		client:         &http.Client{Transport: transport},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
	}
}

func withDefaults(c Config) Config {
	d := DefaultConfig()
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = d.IdleConnTimeout
	}
	if c.TLSHandshakeTimeout == 0 {
		c.TLSHandshakeTimeout = d.TLSHandshakeTimeout
	}
	return c
}

// Do executes req under ctx. When ctx has no deadline the default timeout is
// applied, and it stays in force until the response body is closed.
//
// The response body must be closed by the caller if err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cancel := context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.hookMu.RLock()
	before, after := c.beforeRequest, c.afterResponse
	c.hookMu.RUnlock()

	if before != nil {
		before(req)
	}

	resp, err := c.client.Do(req)

	if after != nil {
		after(req, resp, err)
	}

	if err != nil {
		cancel()
		var urlErr *neturl.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = stripQuery(urlErr.URL)
		}
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request timeout once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

// StatusError is returned by GetJSON for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// GetJSON performs a GET request and decodes a 2xx JSON response into out.
// Other status codes return a *StatusError.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}

	resp, err := c.Get(ctx, url, header)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: stripQuery(url), StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", stripQuery(url), err)
	}
	return nil
}

// GetBytes performs a GET request and returns the body of a 2xx response.
func (c *Client) GetBytes(ctx context.Context, url string, header http.Header, limit int64) ([]byte, error) {
	resp, err := c.Get(ctx, url, header)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{URL: stripQuery(url), StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// stripQuery drops the query string, which may carry API keys.
func stripQuery(rawURL string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// SetBeforeRequestHook sets a function called before each request.
func (c *Client) SetBeforeRequestHook(fn func(*http.Request)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.beforeRequest = fn
}

// SetAfterResponseHook sets a function called after each request, with the
// transport error if there was one.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close closes idle connections in the pool.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

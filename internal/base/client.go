// Package base provides the HTTP plumbing shared by the Moodle web-service calls.
package base

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	wserrors "github.com/unige/moodle-ws-mcp-server/internal/errors"
	"github.com/unige/moodle-ws-mcp-server/metrics"
	"github.com/unige/moodle-ws-mcp-server/tracing"
)

const (
	// DefaultConnectTimeout bounds connection setup. There is no overall request timeout.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultMaxRedirects caps followed redirects per request
	DefaultMaxRedirects = 10

	// DefaultUserAgent identifies the client to the server
	DefaultUserAgent = "MoodleWsClient/0.1"
)

// Proxy describes an HTTP proxy. User and Pass are only used when both are set.
type Proxy struct {
	Host string
	Port int
	User string
	Pass string
}

// URL returns the proxy as a URL suitable for http.Transport.
func (p Proxy) URL() *url.URL {
	u := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
	if p.User != "" && p.Pass != "" {
		u.User = url.UserPassword(p.User, p.Pass)
	}
	return u
}

// Client holds the transport configuration for one Moodle site.
type Client struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string

	connectTimeout time.Duration
	verifyTLS      bool
	maxRedirects   int

	mu    sync.RWMutex
	proxy *Proxy
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. Transport options and
// SetProxy have no effect on a client supplied this way.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.HTTPClient = c
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.Logger = l
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		client.UserAgent = ua
	}
}

// WithConnectTimeout sets the connect timeout
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.connectTimeout = d
	}
}

// WithTLSVerification enables or disables peer certificate verification.
func WithTLSVerification(verify bool) ClientOption {
	return func(client *Client) {
		client.verifyTLS = verify
	}
}

// WithMaxRedirects sets the redirect cap
func WithMaxRedirects(n int) ClientOption {
	return func(client *Client) {
		client.maxRedirects = n
	}
}

// NewClient creates a new base client with default settings
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		Logger:         slog.New(slog.DiscardHandler),
		UserAgent:      DefaultUserAgent,
		connectTimeout: DefaultConnectTimeout,
		maxRedirects:   DefaultMaxRedirects,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.HTTPClient == nil {
		c.HTTPClient = c.newHTTPClient()
	}

	return c
}

// VerifyTLS reports whether peer certificates are verified
func (c *Client) VerifyTLS() bool {
	return c.verifyTLS
}

// SetProxy routes every subsequent request through p. A nil proxy restores
// the environment's proxy settings.
func (c *Client) SetProxy(p *Proxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxy = p
}

// Proxy returns the configured proxy, or nil
func (c *Client) Proxy() *Proxy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.proxy == nil {
		return nil
	}
	p := *c.proxy
	return &p
}

// proxyFor is the http.Transport proxy hook. It is consulted per request, so
// SetProxy takes effect on the next call.
func (c *Client) proxyFor(req *http.Request) (*url.URL, error) {
	if p := c.Proxy(); p != nil {
		return p.URL(), nil
	}
	return http.ProxyFromEnvironment(req)
}

// RequestConfig configures a single HTTP request
type RequestConfig struct {
	Method      string // defaults to GET
	URL         string
	Body        io.Reader
	ContentType string
	// Operation labels the request in logs and metrics (e.g. the wsfunction name)
	Operation string
}

// DoRequest performs exactly one HTTP exchange. Any outcome other than a
// completed request with final status 200 is returned as a *TransportError;
// the body is still returned when a response was received.
func (c *Client) DoRequest(ctx context.Context, cfg RequestConfig) ([]byte, int, error) {
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, cfg.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if cfg.ContentType != "" {
		req.Header.Set("Content-Type", cfg.ContentType)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	tracing.InjectHeaders(ctx, req.Header)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.RecordHTTPRequest(method, cfg.Operation, 0, time.Since(start).Seconds())
		c.Logger.Debug("HTTP request failed",
			"operation", cfg.Operation,
			"method", method,
			"error", err)
		return nil, 0, &wserrors.TransportError{Message: err.Error(), Err: err}
	}

	body, err := readAndClose(resp)
	metrics.RecordHTTPRequest(method, cfg.Operation, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return nil, resp.StatusCode, &wserrors.TransportError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read response: %v", err),
			Err:        err,
		}
	}

	c.Logger.Debug("HTTP request completed",
		"operation", cfg.Operation,
		"method", method,
		"status", resp.StatusCode,
		"bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		return body, resp.StatusCode, &wserrors.TransportError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	return body, resp.StatusCode, nil
}

// readAndClose reads the response body and closes it
func readAndClose(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return body, err
}

// newHTTPClient creates an HTTP client from the transport settings. Only the
// dial and TLS handshake are bounded; reading the response is not.
func (c *Client) newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   c.connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               c.proxyFor,
		DialContext:         dialer.DialContext,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !c.verifyTLS}, //nolint:gosec // opt-in via WithTLSVerification
		TLSHandshakeTimeout: c.connectTimeout,
		DisableCompression:  false,
		ForceAttemptHTTP2:   true,
	}

	maxRedirects := c.maxRedirects
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Package moodle is a client for the Moodle web-service REST API.
//
// A Client invokes named web-service functions with Invoke (or Call, which
// also accepts Go-style method names), obtains tokens from login/token.php
// with NewToken, and uploads files to the user's draft area with Upload.
//
//	client := moodle.NewClient("https://moodle.example.edu", moodle.WithToken(token))
//	info, err := client.Invoke(ctx, "core_webservice_get_site_info", nil)
//
// Arguments are flattened into Moodle's bracketed form fields, so nested maps,
// slices, structs and Params can be passed directly:
//
//	client.Invoke(ctx, "core_course_get_courses", map[string]any{
//		"options": map[string]any{"ids": []int{2, 3}},
//	})
//
// Each call makes exactly one HTTP request; nothing is retried or cached.
package moodle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/unige/moodle-ws-mcp-server/internal/base"
	wserrors "github.com/unige/moodle-ws-mcp-server/internal/errors"
	"github.com/unige/moodle-ws-mcp-server/metrics"
	"github.com/unige/moodle-ws-mcp-server/tracing"
)

const (
	// DefaultEndpoint is the REST server script, relative to the site root
	DefaultEndpoint = "/webservice/rest/server.php"

	// TokenPath is the login script that issues web-service tokens
	TokenPath = "/login/token.php"

	// UploadPath is the draft area upload script
	UploadPath = "/webservice/upload.php"

	// DefaultService is the external service name used by NewToken
	DefaultService = "admin"

	formContentType = "application/x-www-form-urlencoded"

	redacted = "REDACTED"
)

// Client talks to one Moodle site.
//
// Token and proxy may be changed between calls; the other settings are fixed
// at construction. The client holds no per-call state.
type Client struct {
	*base.Client

	site     string
	endpoint string

	mu    sync.RWMutex
	token string

	baseOpts []base.ClientOption
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithToken sets the web-service token
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithEndpoint sets a non-standard REST endpoint path
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = normalizeEndpoint(endpoint)
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.baseOpts = append(c.baseOpts, base.WithHTTPClient(hc))
	}
}

// WithLogger sets a custom logger. The default discards everything.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.baseOpts = append(c.baseOpts, base.WithLogger(l))
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.baseOpts = append(c.baseOpts, base.WithUserAgent(ua))
	}
}

// WithConnectTimeout bounds connection setup (default 30s)
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.baseOpts = append(c.baseOpts, base.WithConnectTimeout(d))
	}
}

// WithTLSVerification turns server certificate verification on or off.
// Verification is off by default.
func WithTLSVerification(verify bool) ClientOption {
	return func(c *Client) {
		c.baseOpts = append(c.baseOpts, base.WithTLSVerification(verify))
	}
}

// WithMaxRedirects caps followed redirects (default 10)
func WithMaxRedirects(n int) ClientOption {
	return func(c *Client) {
		c.baseOpts = append(c.baseOpts, base.WithMaxRedirects(n))
	}
}

// NewClient creates a client for the Moodle site rooted at site.
// Trailing slashes and backslashes are stripped from site.
func NewClient(site string, opts ...ClientOption) *Client {
	c := &Client{
		site:     strings.TrimRight(site, `/\`),
		endpoint: DefaultEndpoint,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Client = base.NewClient(c.baseOpts...)
	c.baseOpts = nil

	if !c.VerifyTLS() {
		c.Logger.Warn("TLS certificate verification is disabled", "site", c.site)
	}

	return c
}

// Site returns the normalized site URL
func (c *Client) Site() string {
	return c.site
}

// Endpoint returns the REST endpoint path
func (c *Client) Endpoint() string {
	return c.endpoint
}

// GetToken returns the current token
func (c *Client) GetToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the token used by subsequent calls
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ConfigureProxy sends all subsequent requests through an HTTP proxy.
// Credentials are used only when both user and pass are non-empty.
// Reachability is not checked.
func (c *Client) ConfigureProxy(host string, port int, user, pass string) {
	c.SetProxy(&base.Proxy{
		Host: host,
		Port: port,
		User: user,
		Pass: pass,
	})
}

// Invoke calls the web-service function fn with args and returns the decoded
// response.
//
// args may be a map, slice, struct, Params or url.Values, which are
// flattened with EncodeForm; a string or []byte is posted verbatim.
// Invoke fails with an *AuthError if no token is set, a *TransportError if
// the final HTTP status is not 200, and a *RemoteError if the server answers
// with an exception envelope.
func (c *Client) Invoke(ctx context.Context, fn string, args any) (Result, error) {
	token := c.GetToken()
	if token == "" {
		metrics.RecordAuthFailure("missing_token")
		return Result{}, wserrors.NewMissingTokenError()
	}

	ctx, span := tracing.StartClientSpan(ctx, "moodle.invoke", fn, c.site)
	defer span.End()

	body, err := EncodeForm(args)
	if err != nil {
		tracing.RecordError(span, err)
		return Result{}, err
	}

	c.Logger.Debug("Prepare function",
		"function", fn,
		"endpoint", c.site+c.endpoint)
	c.Logger.Debug("Call function",
		"function", fn,
		"data", redactForm(body))

	start := time.Now()
	result, err := c.invoke(ctx, fn, token, body)
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.RecordRemoteCall(fn, duration, false, errorCode(err))
		tracing.RecordError(span, err)
		return Result{}, err
	}

	metrics.RecordRemoteCall(fn, duration, true, "")
	return result, nil
}

func (c *Client) invoke(ctx context.Context, fn, token, body string) (Result, error) {
	payload, _, err := c.DoRequest(ctx, base.RequestConfig{
		Method:      http.MethodPost,
		URL:         c.functionURL(token, fn),
		Body:        strings.NewReader(body),
		ContentType: formContentType,
		Operation:   fn,
	})
	if err != nil {
		return Result{}, err
	}

	return c.decode(payload, false, "function", fn)
}

// NewToken requests a token for username from login/token.php. An empty
// service means DefaultService. The token is returned, not stored; pass it
// to SetToken to use it.
func (c *Client) NewToken(ctx context.Context, username, password, service string) (string, error) {
	if service == "" {
		service = DefaultService
	}

	ctx, span := tracing.StartClientSpan(ctx, "moodle.new_token", "", c.site)
	defer span.End()

	token, err := c.newToken(ctx, username, password, service)
	metrics.RecordTokenRequest(service, err == nil)
	if err != nil {
		tracing.RecordError(span, err)
		return "", err
	}
	return token, nil
}

func (c *Client) newToken(ctx context.Context, username, password, service string) (string, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("password", password)
	params.Set("service", service)

	payload, _, err := c.DoRequest(ctx, base.RequestConfig{
		Method:    http.MethodGet,
		URL:       c.site + TokenPath + "?" + params.Encode(),
		Operation: "token",
	})
	if err != nil {
		return "", err
	}

	result, err := c.decode(payload, true, "url", c.site+TokenPath)
	if err != nil {
		return "", err
	}

	token := result.String("token")
	if token == "" {
		return "", &RemoteError{ErrorCode: "notoken", Message: "response contains no token"}
	}
	return token, nil
}

// decode parses a JSON payload and converts an error envelope into a
// *RemoteError. Server debug info is logged, never returned.
func (c *Client) decode(payload []byte, scripts bool, logAttrs ...any) (Result, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Result{}, nil
	}

	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return Result{}, &DecodeError{Message: "failed to parse response", Err: err}
	}

	if remoteErr, debugInfo := remoteErrorFrom(v, scripts); remoteErr != nil {
		if debugInfo != "" {
			c.Logger.Debug("Remote exception",
				append(logAttrs,
					"exception", remoteErr.Exception,
					"errorcode", remoteErr.ErrorCode,
					"message", remoteErr.Message,
					"debuginfo", debugInfo)...)
		}
		return Result{}, remoteErr
	}

	return NewResult(v), nil
}

// redactForm masks the values of password fields in a form body so that it
// can be logged.
func redactForm(body string) string {
	if !strings.Contains(strings.ToLower(body), "password") {
		return body
	}

	pairs := strings.Split(body, "&")
	for i, pair := range pairs {
		name, _, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if unescaped, err := url.QueryUnescape(name); err == nil {
			name = unescaped
		}
		if strings.Contains(strings.ToLower(name), "password") {
			pairs[i] = pair[:strings.IndexByte(pair, '=')+1] + redacted
		}
	}
	return strings.Join(pairs, "&")
}

// functionURL builds the REST URL for fn
func (c *Client) functionURL(token, fn string) string {
	return c.site + c.endpoint +
		"?wstoken=" + url.QueryEscape(token) +
		"&moodlewsrestformat=json" +
		"&wsfunction=" + url.QueryEscape(fn)
}

// normalizeEndpoint ensures exactly one leading slash
func normalizeEndpoint(endpoint string) string {
	return "/" + strings.TrimLeft(endpoint, `/\`)
}

// errorCode picks a metrics label for a failed call
func errorCode(err error) string {
	switch e := err.(type) {
	case *RemoteError:
		if e.ErrorCode != "" {
			return e.ErrorCode
		}
		if e.Exception != "" {
			return e.Exception
		}
		return "remote"
	case *TransportError:
		if e.StatusCode == 0 {
			return "transport"
		}
		return fmt.Sprintf("http_%d", e.StatusCode)
	case *ValidationError:
		return "validation"
	case *DecodeError:
		return "decode"
	}
	return "error"
}

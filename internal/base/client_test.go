package base

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	wserrors "github.com/unige/moodle-ws-mcp-server/internal/errors"
)

func TestNewClient(t *testing.T) {
	client := NewClient()
	if client == nil {
		t.Fatal("NewClient returned nil")
	}

	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil")
	}
	if client.Logger == nil {
		t.Error("Logger is nil")
	}
	if client.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", client.UserAgent, DefaultUserAgent)
	}
	if client.VerifyTLS() {
		t.Error("TLS verification should be off by default")
	}
	if client.connectTimeout != DefaultConnectTimeout {
		t.Errorf("connectTimeout = %v, want %v", client.connectTimeout, DefaultConnectTimeout)
	}
	if client.maxRedirects != DefaultMaxRedirects {
		t.Errorf("maxRedirects = %d, want %d", client.maxRedirects, DefaultMaxRedirects)
	}
	if client.HTTPClient.Timeout != 0 {
		t.Errorf("HTTPClient.Timeout = %v, want no overall timeout", client.HTTPClient.Timeout)
	}
	if client.Proxy() != nil {
		t.Error("Proxy should be nil by default")
	}
}

func TestNewClientWithOptions(t *testing.T) {
	customHTTP := &http.Client{Timeout: 60 * time.Second}
	customLogger := slog.Default()

	client := NewClient(
		WithHTTPClient(customHTTP),
		WithLogger(customLogger),
		WithUserAgent("test-agent/1.0"),
		WithConnectTimeout(5*time.Second),
		WithTLSVerification(true),
		WithMaxRedirects(3),
	)

	if client.HTTPClient != customHTTP {
		t.Error("custom HTTP client was not set")
	}
	if client.Logger != customLogger {
		t.Error("custom logger was not set")
	}
	if client.UserAgent != "test-agent/1.0" {
		t.Errorf("UserAgent = %q", client.UserAgent)
	}
	if client.connectTimeout != 5*time.Second {
		t.Errorf("connectTimeout = %v", client.connectTimeout)
	}
	if !client.VerifyTLS() {
		t.Error("TLS verification should be on")
	}
	if client.maxRedirects != 3 {
		t.Errorf("maxRedirects = %d", client.maxRedirects)
	}
}

func TestProxyURL(t *testing.T) {
	tests := []struct {
		name  string
		proxy Proxy
		want  string
	}{
		{"no credentials", Proxy{Host: "proxy.local", Port: 3128}, "http://proxy.local:3128"},
		{"credentials", Proxy{Host: "proxy.local", Port: 8080, User: "u", Pass: "p"}, "http://u:p@proxy.local:8080"},
		{"user without pass", Proxy{Host: "proxy.local", Port: 8080, User: "u"}, "http://proxy.local:8080"},
		{"pass without user", Proxy{Host: "proxy.local", Port: 8080, Pass: "p"}, "http://proxy.local:8080"},
		{"ipv6 host", Proxy{Host: "::1", Port: 8080}, "http://[::1]:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.proxy.URL().String(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetProxyReturnsCopy(t *testing.T) {
	client := NewClient()
	client.SetProxy(&Proxy{Host: "proxy.local", Port: 8080})

	p := client.Proxy()
	p.Host = "changed"

	if got := client.Proxy().Host; got != "proxy.local" {
		t.Errorf("Proxy().Host = %q, mutation leaked into client", got)
	}

	client.SetProxy(nil)
	if client.Proxy() != nil {
		t.Error("SetProxy(nil) should clear the proxy")
	}
}

func TestDoRequest(t *testing.T) {
	var gotMethod, gotUA, gotContentType, gotAccept, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient()
	body, status, err := client.DoRequest(context.Background(), RequestConfig{
		Method:      http.MethodPost,
		URL:         server.URL,
		Body:        strings.NewReader("a=1"),
		ContentType: "application/x-www-form-urlencoded",
		Operation:   "test",
	})
	if err != nil {
		t.Fatalf("DoRequest: %v", err)
	}

	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q", gotMethod)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotBody != "a=1" {
		t.Errorf("body sent = %q", gotBody)
	}
}

func TestDoRequestDefaultsToGet(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer server.Close()

	if _, _, err := NewClient().DoRequest(context.Background(), RequestConfig{URL: server.URL}); err != nil {
		t.Fatalf("DoRequest: %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
}

func TestDoRequestNon200(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"forbidden", http.StatusForbidden},
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
		{"no content", http.StatusNoContent},
		{"created", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, status, err := NewClient().DoRequest(context.Background(), RequestConfig{URL: server.URL})
			if err == nil {
				t.Fatal("expected error")
			}

			var te *wserrors.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("expected TransportError, got %T", err)
			}
			if te.StatusCode != tt.status || status != tt.status {
				t.Errorf("StatusCode = %d, status = %d, want %d", te.StatusCode, status, tt.status)
			}
			if te.Message != http.StatusText(tt.status) {
				t.Errorf("Message = %q, want %q", te.Message, http.StatusText(tt.status))
			}
			if n := requests.Load(); n != 1 {
				t.Errorf("server saw %d requests, want exactly 1", n)
			}
		})
	}
}

func TestDoRequestConnectionFailure(t *testing.T) {
	// Reserve a port, then close it so nothing listens there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	_, _, err = NewClient().DoRequest(context.Background(), RequestConfig{URL: "http://" + addr})
	if !wserrors.IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if wserrors.StatusCode(err) != 0 {
		t.Errorf("StatusCode = %d, want 0", wserrors.StatusCode(err))
	}

	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Errorf("expected underlying *net.OpError, got %v", err)
	}
}

func TestDoRequestContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := NewClient().DoRequest(ctx, RequestConfig{URL: server.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded in chain, got %v", err)
	}
}

func TestRedirects(t *testing.T) {
	tests := []struct {
		name      string
		hops      int
		max       int
		wantError bool
	}{
		{"within default cap", 10, DefaultMaxRedirects, false},
		{"beyond default cap", 11, DefaultMaxRedirects, true},
		{"custom cap", 3, 2, true},
		{"no redirects allowed", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n, _ := strconv.Atoi(r.URL.Query().Get("n"))
				if n < tt.hops {
					http.Redirect(w, r, "/?n="+strconv.Itoa(n+1), http.StatusFound)
					return
				}
				w.Write([]byte("done"))
			}))
			defer server.Close()

			client := NewClient(WithMaxRedirects(tt.max))
			body, _, err := client.DoRequest(context.Background(), RequestConfig{URL: server.URL + "/?n=0"})

			if tt.wantError {
				if !wserrors.IsTransport(err) {
					t.Errorf("expected TransportError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(body) != "done" {
				t.Errorf("body = %q", body)
			}
		})
	}
}

func TestTLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	t.Run("disabled accepts self-signed certificate", func(t *testing.T) {
		body, _, err := NewClient().DoRequest(context.Background(), RequestConfig{URL: server.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != "secure" {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("enabled rejects self-signed certificate", func(t *testing.T) {
		client := NewClient(WithTLSVerification(true))
		_, _, err := client.DoRequest(context.Background(), RequestConfig{URL: server.URL})
		if !wserrors.IsTransport(err) {
			t.Errorf("expected TransportError, got %v", err)
		}
	})
}

func TestProxyIsUsed(t *testing.T) {
	var gotHost, gotAuth string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.URL.Host
		gotAuth = r.Header.Get("Proxy-Authorization")
		w.Write([]byte("via proxy"))
	}))
	defer proxy.Close()

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(proxy.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	client := NewClient()
	client.SetProxy(&Proxy{Host: host, Port: port, User: "alice", Pass: "secret"})

	body, _, err := client.DoRequest(context.Background(), RequestConfig{URL: "http://moodle.example.invalid/login/token.php"})
	if err != nil {
		t.Fatalf("DoRequest: %v", err)
	}

	if string(body) != "via proxy" {
		t.Errorf("body = %q", body)
	}
	if gotHost != "moodle.example.invalid" {
		t.Errorf("proxy saw host %q", gotHost)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	if gotAuth != wantAuth {
		t.Errorf("Proxy-Authorization = %q, want %q", gotAuth, wantAuth)
	}
}

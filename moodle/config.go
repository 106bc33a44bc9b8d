package moodle

import (
	"fmt"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
)

// Config holds Moodle connection settings
type Config struct {
	// SiteURL is the Moodle site root (e.g., https://moodle.example.edu)
	SiteURL string `envconfig:"URL" required:"true"`

	// Token is the web-service token (optional; see Client.NewToken)
	Token string `envconfig:"TOKEN"`

	// Endpoint overrides the REST server path
	Endpoint string `envconfig:"ENDPOINT"`

	UserAgent      string        `envconfig:"USER_AGENT" default:"MoodleWsClient/0.1"`
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"30s"`

	// VerifyTLS enables certificate verification. It defaults to false,
	// which accepts any certificate; set it for production sites.
	VerifyTLS    bool `envconfig:"VERIFY_TLS" default:"false"`
	MaxRedirects int  `envconfig:"MAX_REDIRECTS" default:"10"`

	ProxyHost string `envconfig:"PROXY_HOST"`
	ProxyPort int    `envconfig:"PROXY_PORT" default:"8080"`
	ProxyUser string `envconfig:"PROXY_USER"`
	ProxyPass string `envconfig:"PROXY_PASS"`

	// MetricsAddr, if set, serves Prometheus metrics (e.g., :9090)
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// LoadConfig loads configuration from MOODLE_* environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("moodle", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for obvious mistakes
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SiteURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.ConnectTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxRedirects, validation.Min(0)),
		validation.Field(&c.ProxyPort, validation.When(c.ProxyHost != "",
			validation.Required,
			validation.Min(1),
			validation.Max(65535),
		)),
	)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// HasProxy returns true if a proxy is configured
func (c *Config) HasProxy() bool {
	return c.ProxyHost != ""
}

// Options converts the configuration into client options
func (c *Config) Options() []ClientOption {
	opts := []ClientOption{
		WithToken(c.Token),
		WithEndpoint(c.Endpoint),
		WithTLSVerification(c.VerifyTLS),
		WithMaxRedirects(c.MaxRedirects),
	}
	if c.UserAgent != "" {
		opts = append(opts, WithUserAgent(c.UserAgent))
	}
	if c.ConnectTimeout > 0 {
		opts = append(opts, WithConnectTimeout(c.ConnectTimeout))
	}
	return opts
}

// NewClientFromConfig creates a client from cfg, applying the proxy settings.
// Extra options are applied after the configured ones.
func NewClientFromConfig(cfg *Config, opts ...ClientOption) *Client {
	c := NewClient(cfg.SiteURL, append(cfg.Options(), opts...)...)
	if cfg.HasProxy() {
		c.ConfigureProxy(cfg.ProxyHost, cfg.ProxyPort, cfg.ProxyUser, cfg.ProxyPass)
	}
	return c
}

func httpURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}

package llm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	// ChatURL is the full URL of the chat endpoint (default: DefaultChatURL).
	ChatURL string

	UpstreamTimeout time.Duration // per-request timeout, 0 keeps the transport default
	MaxRetries      int           // retries after the first attempt (default: 0)
	BaseBackoff     time.Duration // initial backoff (default: 100ms)

	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// Validate checks that ChatURL is an absolute http(s) URL.
func (c *Config) Validate() error {
	if c.ChatURL == "" {
		return errors.New("ChatURL is required")
	}
	u, err := url.Parse(c.ChatURL)
	if err != nil {
		return fmt.Errorf("ChatURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("ChatURL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("ChatURL: host is required")
	}
	if c.MaxRetries < 0 {
		return errors.New("MaxRetries must not be negative")
	}
	return nil
}

// WithDefaults returns a copy of Config with defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	cfg.ChatURL = strings.TrimSpace(cfg.ChatURL)
	if cfg.ChatURL == "" {
		cfg.ChatURL = DefaultChatURL
	}
	if cfg.UpstreamTimeout < 0 {
		cfg.UpstreamTimeout = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

// OllamaClient talks to an Ollama-compatible /api/chat endpoint.
type OllamaClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Client = (*OllamaClient)(nil)

// NewClient creates an inference client with the given configuration.
func NewClient(cfg Config, logger *zap.Logger) (*OllamaClient, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: defaultTransport(cfg),
		}
	}

	return &OllamaClient{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("llmclient"),
	}, nil
}

// defaultTransport pools connections to the inference server. It sets no
// response header timeout: generation can take as long as the model needs.
func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Close releases idle connections.
func (c *OllamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chat-relay/internal/cache"
	"chat-relay/internal/llm"
)

// Config is assembled once at startup and handed to constructors; nothing
// mutates it afterwards.
type Config struct {
	Host string
	Port string

	OllamaURL       string
	UpstreamTimeout time.Duration
	UpstreamRetries int

	RequestTimeout time.Duration
	MaxBodyBytes   int64

	CacheBackend string // "none", "memory" or "redis"
	CacheTTL     time.Duration
	CachePrefix  string
	RedisAddr    string
	VersionID    string
}

// Addr is the listen address for http.Server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Load reads the environment, after seeding it from the given .env files
// when they exist. Variables already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which has the signature of
// os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		Host:         get("RELAY_HOST", "0.0.0.0"),
		Port:         get("PORT", "5001"),
		OllamaURL:    get("OLLAMA_URL", llm.DefaultChatURL),
		CacheBackend: strings.ToLower(get("CACHE_BACKEND", cache.BackendNone)),
		CachePrefix:  get("CACHE_PREFIX", "chatrelay"),
		RedisAddr:    get("REDIS_ADDR", "127.0.0.1:6379"),
		VersionID:    get("RELAY_VERSION", "v1"),
	}

	var err error
	if cfg.UpstreamTimeout, err = parseDuration(get("RELAY_UPSTREAM_TIMEOUT", "0")); err != nil {
		return Config{}, fmt.Errorf("RELAY_UPSTREAM_TIMEOUT: %w", err)
	}
	if cfg.RequestTimeout, err = parseDuration(get("RELAY_REQUEST_TIMEOUT", "0")); err != nil {
		return Config{}, fmt.Errorf("RELAY_REQUEST_TIMEOUT: %w", err)
	}
	if cfg.CacheTTL, err = parseDuration(get("CACHE_TTL", "5m")); err != nil {
		return Config{}, fmt.Errorf("CACHE_TTL: %w", err)
	}
	if cfg.UpstreamRetries, err = strconv.Atoi(get("RELAY_UPSTREAM_RETRIES", "0")); err != nil {
		return Config{}, fmt.Errorf("RELAY_UPSTREAM_RETRIES: %w", err)
	}
	if cfg.MaxBodyBytes, err = strconv.ParseInt(get("RELAY_MAX_BODY_BYTES", "524288"), 10, 64); err != nil {
		return Config{}, fmt.Errorf("RELAY_MAX_BODY_BYTES: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at listen or dial time.
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("PORT: invalid port %q", c.Port)
	}
	if c.UpstreamRetries < 0 {
		return errors.New("RELAY_UPSTREAM_RETRIES must not be negative")
	}
	if c.UpstreamTimeout < 0 || c.RequestTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("RELAY_MAX_BODY_BYTES must be positive")
	}

	switch c.CacheBackend {
	case cache.BackendNone, cache.BackendMemory:
	case cache.BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis cache")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND: unknown backend %q", c.CacheBackend)
	}
	if c.CacheBackend != cache.BackendNone && c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive when caching is enabled")
	}

	llmCfg := c.LLMConfig()
	return llmCfg.Validate()
}

// LLMConfig maps the relay settings onto the inference client config.
func (c Config) LLMConfig() llm.Config {
	return llm.Config{
		ChatURL:         c.OllamaURL,
		UpstreamTimeout: c.UpstreamTimeout,
		MaxRetries:      c.UpstreamRetries,
	}
}

// CacheConfig maps the relay settings onto the response cache config.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		Backend: c.CacheBackend,
		TTL:     c.CacheTTL,
		Prefix:  c.CachePrefix,
	}
}

// parseDuration accepts Go durations ("30s") or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

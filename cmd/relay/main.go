package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chat-relay/internal/cache"
	"chat-relay/internal/config"
	"chat-relay/internal/handlers"
	"chat-relay/internal/httpserver"
	"chat-relay/internal/llm"
	"chat-relay/internal/metrics"
	"chat-relay/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("relay exited with error: %v", err)
	}
}

func run() error {
	// ----- Config -----
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	logger.Info("loaded config",
		zap.String("addr", cfg.Addr()),
		zap.String("ollama_url", cfg.OllamaURL),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
		zap.Int("upstream_retries", cfg.UpstreamRetries),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// ----- Inference client -----
	llmClient, err := llm.NewClient(cfg.LLMConfig(), logger)
	if err != nil {
		return err
	}
	defer llmClient.Close()

	var client llm.Client = llmClient

	// ----- Response cache (opt-in) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()
	}

	store, err := cache.NewExactCache(cfg.CacheConfig(), redisClient)
	if err != nil {
		return err
	}
	switch s := store.(type) {
	case *cache.RedisExactCache:
		// Fail fast if Redis is misconfigured
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
	case *cache.MemoryExactCache:
		defer s.Close()
	}
	if store != nil {
		client = cache.NewCachedClient(client, cache.NewLoggingExactCache(store), cfg.CacheTTL, cfg.VersionID)
	}

	// ----- Router -----
	opts := httpserver.DefaultOptions()
	opts.RequestTimeout = cfg.RequestTimeout
	opts.MaxBodyBytes = cfg.MaxBodyBytes
	r := httpserver.NewRouter(logger, handlers.NewChatHandler(client), opts)

	// ----- HTTP server -----
	// No WriteTimeout: a chat call lasts as long as the model takes.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting relay", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
		return err
	case <-stop:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chat-relay/internal/handlers"
	"chat-relay/internal/metrics"
	"chat-relay/internal/middleware"
)

type Options struct {
	RequestTimeout time.Duration // 0 = no deadline on request contexts
	MaxBodyBytes   int64
	CORS           middleware.CORSConfig
}

// DefaultOptions returns the settings used when the relay runs unconfigured.
func DefaultOptions() Options {
	return Options{
		MaxBodyBytes: 512 * 1024,
		CORS:         middleware.DefaultCORSConfig(),
	}
}

// NewRouter builds the relay's HTTP surface.
func NewRouter(baseLogger *zap.Logger, chatHandler *handlers.ChatHandler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(metrics.Middleware)

	r.Use(chimw.RequestID)
	// RealIP trusts X-Forwarded-For and X-Real-IP, so remote_ip in the logs is
	// only meaningful behind a trusted proxy.
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.CORS(opts.CORS))
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// health check
	r.Get("/", handlers.Home)
	r.Options("/", handlers.Home)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", chatHandler.Chat)
		r.Options("/chat", chatHandler.Preflight)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

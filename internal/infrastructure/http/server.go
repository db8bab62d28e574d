package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rezkam/shopfloor/internal/config"
	mw "github.com/rezkam/shopfloor/internal/infrastructure/http/middleware"
	"github.com/rezkam/shopfloor/internal/infrastructure/http/response"
)

// Default configuration values for the HTTP server.
const (
	DefaultPort              = "8081"
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1MB
	DefaultMaxBodyBytes      = 1 << 20 // 1MB
)

func positive[T int | time.Duration](v *T, def T) {
	if *v <= 0 {
		*v = def
	}
}

// withDefaults fills zero fields of hand-built configs; env-loaded configs
// already carry defaults.
func withDefaults(cfg config.HTTPConfig) config.HTTPConfig {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	positive(&cfg.ReadTimeout, DefaultReadTimeout)
	positive(&cfg.WriteTimeout, DefaultWriteTimeout)
	positive(&cfg.IdleTimeout, DefaultIdleTimeout)
	positive(&cfg.ReadHeaderTimeout, DefaultReadHeaderTimeout)
	positive(&cfg.MaxHeaderBytes, DefaultMaxHeaderBytes)
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return cfg
}

// APIServer wraps the HTTP server with router and all HTTP concerns.
type APIServer struct {
	server *http.Server
}

// NewAPIServer creates a server that mounts apiHandler under /api.
func NewAPIServer(apiHandler http.Handler, cfg config.HTTPConfig) *APIServer {
	cfg = withDefaults(cfg)

	return &APIServer{
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           otelhttp.NewHandler(setupRouter(apiHandler, cfg), "shopfloor.http"),
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
	}
}

func setupRouter(apiHandler http.Handler, cfg config.HTTPConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLog)
	r.Use(middleware.Recoverer)
	r.Use(mw.MaxBodyBytes(cfg.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Mount("/api", apiHandler)

	return r
}

// Start serves until Shutdown is called, then returns http.ErrServerClosed.
func (s *APIServer) Start() error {
	slog.Info("serving scheduler API", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *APIServer) Shutdown(ctx context.Context) error {
	slog.InfoContext(ctx, "stopping scheduler API")
	return s.server.Shutdown(ctx)
}

// Handler returns the fully wrapped root handler.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address.
func (s *APIServer) Addr() string {
	return s.server.Addr
}

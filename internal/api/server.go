// Package api serves the dashboard's HTTP surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/homeport/stackpilot/internal/api/handlers"
	"github.com/homeport/stackpilot/internal/api/middleware"
	"github.com/homeport/stackpilot/internal/pkg/logger"
)

// Config configures the HTTP server.
type Config struct {
	Host    string
	Port    int
	Verbose bool
	Version string

	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string

	// RateLimit is the allowed requests per second per client. Zero
	// disables limiting.
	RateLimit float64

	// RequestTimeout bounds ordinary requests. Deployments and websocket
	// streams are exempt.
	RequestTimeout time.Duration
}

// DefaultRequestTimeout is used when Config.RequestTimeout is zero.
const DefaultRequestTimeout = 60 * time.Second

// Server is the dashboard API server.
type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server
	ops        handlers.Operations
	hub        *handlers.StatusHub
	limiter    *middleware.RateLimiter
	stopHub    context.CancelFunc
	stack      *handlers.StackHandler
	docs       *handlers.DocsHandler
	health     *handlers.HealthHandler
}

// NewServer creates a server driving ops.
func NewServer(cfg Config, ops handlers.Operations) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	s := &Server{
		config: cfg,
		ops:    ops,
		hub:    handlers.NewStatusHub(ops.Store()),
		stack:  handlers.NewStackHandler(ops),
		docs:   handlers.NewDocsHandler(ops),
		health: handlers.NewHealthHandler(cfg.Version, ops),
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, int(cfg.RateLimit*2)+1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopHub = cancel
	s.hub.Start(ctx)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TimeoutWithExclusions(s.config.RequestTimeout, "/deploy", "/ws/"))
	r.Use(middleware.BodyLimit(0))

	// CORS for frontend dev
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health.HandleHealth)
	r.Get("/health/detailed", s.health.HandleHealthDetailed)

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Handler)
		}
		r.Use(middleware.TokenAuth(s.config.APIToken))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, map[string]string{
				"status":  "ok",
				"version": "v1",
			})
		})

		s.stack.RegisterRoutes(r)
		r.Get("/docs", s.docs.HandleReferenceDoc)
		r.Get("/ws/status", s.hub.HandleStatusWebSocket)
	})

	s.router = r
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting server", "addr", s.Addr(), "managed_host", s.ops.Host())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown stops the server and its background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down server gracefully...")

	s.stopHub()
	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the HTTP handler.
func (s *Server) Router() *chi.Mux {
	return s.router
}

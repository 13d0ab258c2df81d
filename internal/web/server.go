package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/blockedby/spending-stats/internal/database"
	"github.com/blockedby/spending-stats/internal/logger"
)

// Config holds server configuration
type Config struct {
	Port               int
	CORSAllowedOrigins []string
	// WriteRateLimit is requests per second on write routes; 0 disables limiting.
	WriteRateLimit int
	WriteRateBurst int
}

// Server represents the HTTP server
type Server struct {
	router       *chi.Mux
	httpServer   *http.Server
	config       *Config
	listener     net.Listener
	db           *database.DB
	log          *logger.Logger
	writeLimiter *rate.Limiter
}

// NewServer creates a new HTTP server. db may be nil, in which case requests
// get no connection scope and /health skips the database ping.
func NewServer(cfg *Config, db *database.DB, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}

	srv := &Server{
		router: chi.NewRouter(),
		config: cfg,
		db:     db,
		log:    log,
	}

	if cfg.WriteRateLimit > 0 {
		burst := cfg.WriteRateBurst
		if burst <= 0 {
			burst = cfg.WriteRateLimit
		}
		srv.writeLimiter = rate.NewLimiter(rate.Limit(cfg.WriteRateLimit), burst)
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

func (s *Server) setupMiddleware() {
	origins := s.config.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.log.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	if s.db != nil {
		s.router.Use(s.db.Scope)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.health)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("health check: database unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		_ = err // Client disconnected
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s.httpServer.Serve(listener)
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// BaseURL returns the server's base URL
func (s *Server) BaseURL() string {
	if s.listener != nil {
		return fmt.Sprintf("http://%s", s.listener.Addr().String())
	}
	return fmt.Sprintf("http://localhost:%d", s.config.Port)
}

// PagesHandler serves the HTML landing page.
type PagesHandler interface {
	Index(w http.ResponseWriter, r *http.Request)
}

// SpendingHandler serves the spending reports and the high spender write.
type SpendingHandler interface {
	TotalSpent(w http.ResponseWriter, r *http.Request)
	AverageByAge(w http.ResponseWriter, r *http.Request)
	WriteHighSpender(w http.ResponseWriter, r *http.Request)
}

// RegisterPagesHandler registers the landing page
func (s *Server) RegisterPagesHandler(h PagesHandler) {
	s.router.Get("/", h.Index)
}

// RegisterSpendingHandler registers the spending routes. user ids that are
// not digits fall through to 404.
func (s *Server) RegisterSpendingHandler(h SpendingHandler) {
	s.router.Get("/total_spent/{userID:[0-9]+}", h.TotalSpent)
	s.router.Get("/average_spending_by_age", h.AverageByAge)

	var write chi.Router = s.router
	if s.writeLimiter != nil {
		write = s.router.With(RateLimit(s.writeLimiter))
	}
	write.Post("/write_high_spending_user", h.WriteHighSpender)
}

// Router returns the underlying Chi router for external route mounting.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP lets the server be used directly as an http.Handler, mainly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

var _ http.Handler = (*Server)(nil)

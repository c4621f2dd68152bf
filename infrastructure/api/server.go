package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// writeGrace is added to the request timeout so a handler that hits its
// deadline can still write the error response.
const writeGrace = 10 * time.Second

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRequestTimeout sets the longest request the server writes a response
// for. Non-positive values are ignored.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.httpServer.WriteTimeout = d + writeGrace
		}
	}
}

// WithReadTimeout sets how long a client may take to send a request body.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.httpServer.ReadTimeout = d
		}
	}
}

// Server is the HTTP listener in front of the API and MCP routes.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	addr       string
	bound      atomic.Value
}

// NewServer creates a Server for addr. Timeouts default to the v1 request
// budget.
func NewServer(addr string, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	// No Timeout here: the MCP endpoint streams. v1 routes set their own.
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)

	s := &Server{
		router: router,
		addr:   addr,
		logger: logger,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      RequestTimeout + writeGrace,
			IdleTimeout:       120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the chi router for registering routes.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.bound.Store(ln.Addr().String())

	s.logger.Info("ticketsql listening",
		slog.String("addr", ln.Addr().String()),
		slog.Duration("write_timeout", s.httpServer.WriteTimeout),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests,
// including running generations, until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.BoundAddr() == "" {
		return nil
	}
	s.logger.Info("shutting down HTTP server", slog.String("addr", s.BoundAddr()))
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured address.
func (s *Server) Addr() string {
	return s.addr
}

// BoundAddr returns the address actually listened on, empty before Start.
func (s *Server) BoundAddr() string {
	v, _ := s.bound.Load().(string)
	return v
}

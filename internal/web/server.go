package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"go.uber.org/zap"
)

// restTimeout bounds plain REST requests; websocket and SSE routes are exempt.
const restTimeout = 60 * time.Second

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Users      database.UserStore
	Employees  database.EmployeeStore
	Attendance *attendance.Service
	Tokens     *middleware.TokenManager
	Recognizer handlers.Recognizer
	Live       handlers.LiveGateway
	Events     handlers.EventSource
	Health     map[string]handlers.HealthCheck

	VerifyThreshold float64
	LiveRequireAuth bool
}

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
	logger     *zap.Logger
}

// NewServer creates a new web server
func NewServer(cfg config.WebConfig, deps Deps, logger *zap.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		deps:   deps,
		logger: logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket and SSE connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Package server provides the HTTP API of the work order service
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordenapp/internal/config"
	"ordenapp/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// UseCases groups the application services exposed over HTTP
type UseCases struct {
	Orders    usecase.IOrderUseCase
	Collector usecase.ICollectorUseCase
	Finalizer usecase.IFinalizeUseCase
}

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	usecases UseCases
	filesDir string
	router   *chi.Mux
	http     *http.Server
}

// New creates a new server instance. filesDir is served under /files when the
// object store writes to the local filesystem; pass "" otherwise.
func New(cfg *config.Config, uc UseCases, filesDir string) *Server {
	s := &Server{
		config:   cfg,
		usecases: uc,
		filesDir: filesDir,
		router:   chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Run starts the server and handles graceful shutdown
func (s *Server) Run() error {
	serverErrors := make(chan error, 1)

	go func() {
		log.Printf("🚀 Server starting on %s", s.config.Address())
		log.Printf("📁 Debug mode: %v", s.config.Debug)
		serverErrors <- s.http.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Printf("⚠️ Received %v signal, shutting down...", sig)

		// Finalizations in flight get the same deadline as any request
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.http.Shutdown(ctx); err != nil {
			log.Printf("❌ Graceful shutdown failed: %v", err)
			if err := s.http.Close(); err != nil {
				return fmt.Errorf("failed to close server: %w", err)
			}
		}

		log.Println("✅ Server shutdown complete")
	}

	return nil
}

// setupMiddleware configures global middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.securityHeaders)
	s.router.Use(middleware.Compress(5))

	// Finalization waits on the renderer and the object store; keep it under the write timeout
	s.router.Use(middleware.Timeout(s.requestTimeout()))
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.Server.WriteTimeout > 5 {
		return time.Duration(s.config.Server.WriteTimeout-5) * time.Second
	}
	return 30 * time.Second
}

// securityHeaders adds security-related headers to all responses
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self' data:; style-src 'unsafe-inline'")
		next.ServeHTTP(w, r)
	})
}

// GetRouter returns the chi router (useful for testing)
func (s *Server) GetRouter() *chi.Mux {
	return s.router
}

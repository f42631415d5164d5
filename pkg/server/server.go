// Package server exposes the solver over HTTP, optionally behind mutual
// TLS, and provides the matching client.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mscrnt/cantiming/internal/logging"
)

// Server represents the solver service
type Server struct {
	config     Config
	httpServer *http.Server
	logger     logging.Logger
	logFile    io.Closer
	store      SolveStore
}

// Option customizes a Server
type Option func(*Server)

// WithLogger sets the request and solver logger
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore records every served solve in store
func WithStore(store SolveStore) Option {
	return func(s *Server) { s.store = store }
}

// NewServer creates a new solver service
func NewServer(config Config, opts ...Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	server := &Server{
		config: config,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	errorLog := log.New(os.Stderr, "[server] ", log.LstdFlags)
	if config.LogFile != "" {
		logFile, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		server.logFile = logFile
		errorLog = log.New(logFile, "[server] ", log.LstdFlags)
		if server.logger, err = logging.New(logFile, "[server] ", "info"); err != nil {
			_ = logFile.Close()
			return nil, err
		}
	}

	tlsConfig, err := config.LoadTLSConfig()
	if err != nil {
		server.closeLog()
		return nil, fmt.Errorf("failed to load TLS config: %w", err)
	}

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      server.Handler(),
		TLSConfig:    tlsConfig,
		ErrorLog:     errorLog,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return server, nil
}

// Handler returns the routed handler with request logging applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/solve", s.loggingMiddleware(s.solveHandler))
	mux.HandleFunc("/encoders", s.loggingMiddleware(encodersHandler))
	mux.HandleFunc("/health", s.loggingMiddleware(healthHandler))
	return mux
}

// Start listens on the configured port and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. TLS is applied when configured.
func (s *Server) Serve(ln net.Listener) error {
	if s.httpServer.TLSConfig != nil {
		s.logger.Infof("Starting solver service on %s with mTLS", ln.Addr())
		// certificates are already loaded in the TLS config
		err := s.httpServer.ServeTLS(ln, "", "")
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	s.logger.Infof("Starting solver service on %s", ln.Addr())
	err := s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infof("Shutting down solver service...")
	defer s.closeLog()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) closeLog() {
	if s.logFile != nil {
		_ = s.logFile.Close()
		s.logFile = nil
	}
}

// loggingMiddleware logs incoming requests
func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientCert := "none"
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			clientCert = r.TLS.PeerCertificates[0].Subject.CommonName
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(wrapped, r)

		s.logger.Infof("%s %s %d %s client=%s duration=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			r.RemoteAddr,
			clientCert,
			time.Since(start),
		)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Package server exposes the assessment service over HTTP at /api/detect-phishing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
)

// DetectPath is the classifier endpoint the engine posts to
const DetectPath = "/api/detect-phishing"

// DefaultMaxRequestBytes bounds a request body when no limit is configured
const DefaultMaxRequestBytes = 10 << 20

// Assessor produces the analysis for one message
type Assessor interface {
	Analyze(ctx context.Context, msg *core.Message) (*core.Analysis, error)
}

// Observer receives assessment outcomes; *metrics.Metrics implements it
type Observer interface {
	ObserveAssessment(riskLevel string)
	ObserveAssessmentError()
}

// Server wraps the HTTP server for the classifier service
type Server struct {
	mux             *http.ServeMux
	assessor        Assessor
	observer        Observer
	logger          *zap.Logger
	maxRequestBytes int64

	httpServer *http.Server
	listener   net.Listener
}

// Option customises a Server
type Option func(*Server)

// WithObserver reports every assessment to o
func WithObserver(o Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.mux.Handle("/metrics", h) }
}

// WithMaxRequestBytes limits request bodies to n bytes
func WithMaxRequestBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRequestBytes = n
		}
	}
}

// New creates a server around assessor
func New(assessor Assessor, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		mux:             http.NewServeMux(),
		assessor:        assessor,
		logger:          logger,
		maxRequestBytes: DefaultMaxRequestBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc(DetectPath, s.handleDetect)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// Handler returns the root HTTP handler with CORS applied
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Classifier service listening", zap.String("address", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	writeJSON(w, logger, status, map[string]string{"error": msg})
}

// Package api provides the HTTP server that exposes the MindHaven pipeline.
//
// It serves text analysis, the per-user AI chat, the Twilio WhatsApp webhook
// and Prometheus metrics over a standard library ServeMux.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/MindHaven/internal/chat"
	"github.com/BTreeMap/MindHaven/internal/metrics"
	"github.com/BTreeMap/MindHaven/internal/nlp"
)

// Default server settings.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	chat       *chat.Service
	classifier *nlp.Classifier
	metrics    *metrics.Collector
	twilio     http.HandlerFunc
	addr       string
	handler    http.Handler
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr    string
	Metrics *metrics.Collector
	Twilio  http.HandlerFunc
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithMetrics enables /metrics and HTTP request instrumentation.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Opts) { o.Metrics = c }
}

// WithTwilioWebhook mounts the Twilio inbound webhook at /webhooks/twilio.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.Twilio = h }
}

// NewServer creates a Server and builds its routes.
func NewServer(chatService *chat.Service, classifier *nlp.Classifier, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		chat:       chatService,
		classifier: classifier,
		metrics:    cfg.Metrics,
		twilio:     cfg.Twilio,
		addr:       cfg.Addr,
	}
	s.handler = chainMiddlewares(s.routes(), withCORS, withRequestID)
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	s.handle(mux, "GET /health", s.healthHandler)
	s.handle(mux, "POST /nlp/analyze", s.analyzeHandler)
	s.handle(mux, "POST /ai-chat/message", s.chatMessageHandler)
	s.handle(mux, "GET /ai-chat/{userId}", s.conversationHandler)
	if s.twilio != nil {
		s.handle(mux, "POST /webhooks/twilio", s.twilio)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// handle registers h with request logging and metrics labelled by the route path.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	_, route, _ := strings.Cut(pattern, " ")
	mux.Handle(pattern, s.instrument(route, h))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: shutdown failed", "error", err)
		return err
	}
	return nil
}

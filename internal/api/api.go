// Package api provides the HTTP surface of ArogyaMitra.
//
// It exposes the inbound SMS webhook, a liveness endpoint and a health endpoint.
// The webhook acknowledges immediately and leaves all work to the dispatcher.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/ArogyaMitra/internal/flow"
)

// Server configuration constants
const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds how long in-flight requests may take during shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultReadHeaderTimeout bounds how long a client may take to send request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// TwilioSignatureHeader carries the request signature computed by Twilio.
	TwilioSignatureHeader = "X-Twilio-Signature"
)

// Dispatcher schedules the reply to an inbound message.
type Dispatcher interface {
	Dispatch(ctx context.Context, from string, body string) (flow.Route, error)
}

// SignatureValidator verifies webhook request signatures.
type SignatureValidator interface {
	ValidateSignature(url string, params map[string]string, signature string) bool
}

// KnowledgeStats reports the size of the knowledge base.
type KnowledgeStats interface {
	Len() int
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string             // listen address
	Validator     SignatureValidator // nil disables signature checks
	PublicBaseURL string             // externally visible scheme://host used for signature checks
	Knowledge     KnowledgeStats     // optional, reported by /healthz
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithSignatureValidation rejects webhook calls whose signature does not verify.
func WithSignatureValidation(v SignatureValidator, publicBaseURL string) Option {
	return func(o *Opts) {
		o.Validator = v
		o.PublicBaseURL = publicBaseURL
	}
}

// WithKnowledgeStats reports the knowledge base size on /healthz.
func WithKnowledgeStats(k KnowledgeStats) Option {
	return func(o *Opts) {
		o.Knowledge = k
	}
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	dispatcher Dispatcher
	opts       Opts
	mux        *http.ServeMux
}

// NewServer creates a Server and registers its routes.
func NewServer(dispatcher Dispatcher, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{dispatcher: dispatcher, opts: cfg, mux: http.NewServeMux()}
	s.mux.HandleFunc("/{$}", s.rootHandler)
	s.mux.HandleFunc("/healthz", s.healthHandler)
	s.mux.HandleFunc("/api/message", s.messageHandler)
	slog.Debug("Server.NewServer: routes registered", "addr", cfg.Addr, "signature_validation", cfg.Validator != nil)
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("API server failed", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
		return err
	}
	return nil
}

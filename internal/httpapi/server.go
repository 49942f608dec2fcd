package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dshills/snipvault/internal/assistant"
	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/internal/indexer"
	"github.com/dshills/snipvault/internal/searcher"
	"github.com/dshills/snipvault/internal/snippets"
	"github.com/dshills/snipvault/internal/storage"
)

// UserHeader carries the caller's identity, set by the upstream
// authenticator.
const UserHeader = "X-User-ID"

// MaxBodyBytes bounds every request body
const MaxBodyBytes = 1 << 20

// Deps are the components the handlers call into
type Deps struct {
	Storage   storage.Storage
	Snippets  *snippets.Service
	Searcher  *searcher.Searcher
	Assistant *assistant.Assistant
	Indexer   *indexer.Indexer
	Embedder  embedder.Embedder // optional, reported by readiness
}

// Options configure the HTTP layer
type Options struct {
	AllowedOrigins  []string // empty allows any origin
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server is the JSON HTTP API
type Server struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	handler http.Handler
}

// NewServer builds the router and middleware chain
func NewServer(deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{deps: deps, opts: opts, logger: opts.Logger}
	s.handler = s.recoverer(s.logRequests(s.cors(s.routes())))
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", s.handleLive)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	mux.HandleFunc("GET /api/snippets", s.authed(s.handleListSnippets))
	mux.HandleFunc("POST /api/snippets", s.authed(s.handleCreateSnippet))
	mux.HandleFunc("GET /api/snippets/search", s.authed(s.handleSearch))
	mux.HandleFunc("GET /api/snippets/{id}", s.authed(s.handleGetSnippet))
	mux.HandleFunc("PUT /api/snippets/{id}", s.authed(s.handleUpdateSnippet))
	mux.HandleFunc("DELETE /api/snippets/{id}", s.authed(s.handleDeleteSnippet))
	mux.HandleFunc("POST /api/snippets/{id}/use", s.authed(s.handleUseSnippet))
	mux.HandleFunc("GET /api/stats", s.authed(s.handleStats))

	mux.HandleFunc("POST /api/ai/analyze", s.authed(s.handleAnalyze))
	mux.HandleFunc("POST /api/ai/explain", s.authed(s.handleExplain))
	mux.HandleFunc("POST /api/ai/embed", s.authed(s.handleEmbed))

	mux.HandleFunc("POST /api/admin/reembed", s.authed(s.handleReembed))

	return mux
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests for up to ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	// Request contexts outlive ctx so Shutdown can drain them.
	base := context.WithoutCancel(ctx)
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server", "timeout", s.opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Package server provides the MCP server exposing the mapping tools over
// stdio or SSE.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/NERVsystems/mapagent/pkg/tools"
	"github.com/NERVsystems/mapagent/pkg/tools/prompts"
	"github.com/NERVsystems/mapagent/pkg/version"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"
)

// Names announced to MCP clients.
const (
	GeocoderName = "OSMGeocoder"
	RoutingName  = "RoutingServer"
	CombinedName = "mapagent"
)

// Server encapsulates the MCP server with the selected tool groups.
type Server struct {
	srv    *server.MCPServer
	name   string
	cfg    config.Server
	logger *slog.Logger
}

// Name returns the server name for groups.
func Name(groups ...tools.Group) string {
	var geocoder, routing bool
	for _, g := range groups {
		switch g {
		case tools.GroupGeocoder:
			geocoder = true
		case tools.GroupRouting:
			routing = true
		}
	}
	switch {
	case geocoder && !routing:
		return GeocoderName
	case routing && !geocoder:
		return RoutingName
	default:
		return CombinedName
	}
}

// New creates an MCP server exposing the registry's tools of the given
// groups. No group means all tools.
func New(cfg config.Server, registry *tools.Registry, logger *slog.Logger, groups ...tools.Group) (*Server, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if len(groups) == 0 {
		groups = []tools.Group{tools.GroupGeocoder, tools.GroupRouting}
	}
	name := Name(groups...)

	logger.Info("initializing MCP server",
		"name", name,
		"version", version.BuildVersion,
		"groups", groups)

	srv := server.NewMCPServer(
		name,
		version.BuildVersion,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)

	registry.RegisterTools(srv, groups...)

	var geocoder, routing bool
	for _, g := range groups {
		geocoder = geocoder || g == tools.GroupGeocoder
		routing = routing || g == tools.GroupRouting
	}
	prompts.Register(srv, geocoder, routing)

	return &Server{srv: srv, name: name, cfg: cfg, logger: logger}, nil
}

// Name returns the announced server name.
func (s *Server) Name() string { return s.name }

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer { return s.srv }

// Run serves MCP over stdin/stdout until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

// Handler returns the SSE transport wrapped in the inbound rate limiter.
func (s *Server) Handler() http.Handler {
	sse := server.NewSSEServer(s.srv, server.WithBaseURL(s.cfg.BaseURL))
	return limitRequests(s.cfg.RateLimit, s.cfg.Burst, sse)
}

// RunSSE serves MCP over HTTP/SSE on the configured address until ctx is
// cancelled, then shuts down within the configured timeout.
func (s *Server) RunSSE(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Cancelling ctx ends open event streams.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP SSE server starting", "address", s.cfg.Addr, "base_url", s.cfg.BaseURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("sse server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down MCP SSE server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown failed, closing connections", "error", err)
		_ = httpSrv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// limitRequests rejects requests beyond rps with 429. rps <= 0 disables the
// limiter. Upstream calls are never limited here.
func limitRequests(rps float64, burst int, next http.Handler) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

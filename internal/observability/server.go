package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// readHeaderTimeout bounds slow clients; response writes stay unbounded
// because interval streams can be long.
const readHeaderTimeout = 10 * time.Second

// Server hosts an application handler next to /healthz, /readyz and /metrics.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// ServerOptions configures NewServer.
type ServerOptions struct {
	Addr    string
	App     http.Handler
	Metrics http.Handler
	Checks  []ReadyCheck
	Logger  *slog.Logger
}

// NewServer binds opts.Addr and starts serving in the background.
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(opts.Checks...))

	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	if opts.App != nil {
		mux.Handle("/", opts.App)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", opts.Addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("server stopped", "error", serveErr)
		}
	}()

	return &Server{server: srv, listener: listener, logger: logger}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	return nil
}

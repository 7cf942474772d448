package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/zonecast/core/logger"
)

const (
	DefaultReadTimeout     = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Server exposes a health handler over HTTP. Safe for concurrent use.
type Server struct {
	addr        string
	handler     http.Handler
	logger      *slog.Logger
	readTimeout time.Duration
	shutdown    time.Duration

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReadTimeout bounds the time spent reading a request.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithShutdownTimeout bounds a graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdown = d
		}
	}
}

// NewServer returns a server for handler listening on addr.
func NewServer(addr string, handler http.Handler, opts ...Option) (*Server, error) {
	if addr == "" {
		return nil, ErrMissingAddress
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	s := &Server{
		addr:        addr,
		handler:     handler,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		readTimeout: DefaultReadTimeout,
		shutdown:    DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Addr returns the bound address once the server is listening,
// and the configured one before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the address and serves in the background.
func (s *Server) Start(ctx context.Context) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil, ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readTimeout,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.readTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.logger.InfoContext(ctx, "health server listening", logger.Key("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	srv := s.server
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	return errCh, nil
}

// Stop shuts the server down gracefully. It is a no-op when not running.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("health server shutdown failed", logger.Error(err))
		return err
	}
	s.logger.Info("health server stopped")
	return nil
}

// Run returns a function for errgroup that serves until ctx is done.
func (s *Server) Run(ctx context.Context) func() error {
	return func() error {
		errCh, err := s.Start(ctx)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return s.Stop()
		case err := <-errCh:
			_ = s.Stop()
			return err
		}
	}
}

package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	DEFAULT_READ_TIMEOUT     = 15 * time.Minute // whole multipart body
	DEFAULT_SHUTDOWN_TIMEOUT = 30 * time.Second
)

// Server wraps http.Server and shuts it down when its context ends.
type Server struct {
	*http.Server
}

// NewServer creates a Server with timeouts and handler. WriteTimeout stays
// zero because uploads stream progress events for as long as they run.
func NewServer(addr string, handler http.Handler, readTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       readTimeout,
		},
	}
}

// Run serves on ln until ctx is done, then drains in-flight requests.
func (srv *Server) Run(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	Sugar.Info("shutdown signal received, graceful shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DEFAULT_SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	Sugar.Info("HTTP server shutdown success")
	return nil
}

// GraceServer listens on addr and serves handler until ctx is cancelled.
func GraceServer(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("net.Listen error: %w", err)
	}
	return NewServer(addr, handler, DEFAULT_READ_TIMEOUT).Run(ctx, ln)
}

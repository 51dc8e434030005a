package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	log             logrus.FieldLogger
}

func NewServer(cfg config.HTTPConfig, handler http.Handler, log logrus.FieldLogger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: time.Duration(cfg.ShutdownTimeout) * time.Second,
		log:             log,
	}
}

// Run serves HTTP on the configured address and blocks until ctx is canceled or the
// server fails.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(lis) }()
	s.log.WithField("address", lis.Addr().String()).Info("HTTP server started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.log.Info("Shutting down HTTP server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

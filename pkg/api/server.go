package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

const shutdownTimeout = 5 * time.Second

// Server runs the HTTP surface until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger log.Printer
}

func NewServer(addr string, handler http.Handler, logger log.Printer) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.OrDefault(logger),
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[api.Server] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Printf("[api.Server] shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Package api exposes the scheduler's health over the standard gRPC health
// checking protocol.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"ibovtech/internal/config"
	"ibovtech/pkg/ibovtech"
)

// PipelineService is the health service name that tracks the outcome of the
// most recent pipeline run. The empty service name reports process liveness.
const PipelineService = ibovtech.PipelineService

// Server hosts the gRPC health endpoint.
type Server struct {
	addr   string
	grpc   *grpc.Server
	status *RunStatus
	log    *slog.Logger
}

// NewServer creates a Server listening on cfg.HealthAddr.
func NewServer(cfg config.Server, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(PipelineService, healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		addr:   cfg.HealthAddr,
		grpc:   gs,
		status: newRunStatus(hs),
		log:    logger.With("component", "api"),
	}
}

// Status returns the run status tracker, which implements the scheduler's
// status sink.
func (s *Server) Status() *RunStatus { return s.status }

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then stops gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("health server listening", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down health server")
	s.status.Shutdown()
	s.shutdown(5 * time.Second)
	return nil
}

// shutdown stops gracefully, forcing the stop after timeout.
func (s *Server) shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.grpc.Stop()
	}
}

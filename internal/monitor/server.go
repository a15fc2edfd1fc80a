package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/panelopt/panelopt/pkg/config"
	"github.com/panelopt/panelopt/pkg/logger"
)

// Servers are the running status endpoints. Either may be absent.
type Servers struct {
	httpSrv *http.Server
	grpcSrv *grpc.Server
	health  *health.Server

	HTTPAddr string
	GRPCAddr string
}

// Start listens on the configured addresses. A nil cfg or empty address
// leaves that server off.
func Start(cfg *config.Monitor, store *RunStore, metrics http.Handler) (*Servers, error) {
	s := &Servers{}
	if cfg == nil {
		return s, nil
	}

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return nil, fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCAddr, err)
		}
		s.grpcSrv = grpc.NewServer()
		s.health = Register(s.grpcSrv, store)
		s.GRPCAddr = lis.Addr().String()
		go func() {
			logger.Info("gRPC server listening", "addr", s.GRPCAddr)
			if err := s.grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()
	}

	if cfg.HTTPAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			if s.grpcSrv != nil {
				s.grpcSrv.Stop()
			}
			return nil, fmt.Errorf("listen for HTTP on %s: %w", cfg.HTTPAddr, err)
		}
		s.httpSrv = &http.Server{
			Handler:           NewHTTPServer(store, metrics).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		s.HTTPAddr = lis.Addr().String()
		go func() {
			logger.Info("HTTP server listening", "addr", s.HTTPAddr)
			if err := s.httpSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()
	}
	return s, nil
}

// Shutdown stops both servers gracefully.
func (s *Servers) Shutdown(ctx context.Context) error {
	if s.health != nil {
		s.health.SetServingStatus(RunMonitorServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	if s.grpcSrv != nil {
		s.grpcSrv.GracefulStop()
	}
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("HTTP shutdown: %w", err)
		}
	}
	return nil
}

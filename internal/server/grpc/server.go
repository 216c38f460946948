// Package grpc serves the standard gRPC health protocol for the counter
// server. Serving status follows the database probe.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/wxcounter/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "wxcounter.Ledger"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DBGauge records the outcome of the last probe.
type DBGauge interface {
	SetDBUp(up bool)
}

type HealthServer struct {
	address string
	logger  logging.Logger
	db      Pinger
	gauge   DBGauge
	health  *health.Server
}

func NewHealthServer(a string, l logging.Logger, db Pinger, gauge DBGauge) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		address: a,
		logger:  l.With("module", "grpc_health"),
		db:      db,
		gauge:   gauge,
		health:  h,
	}
}

// SetServing flips both the overall and the ledger service status.
func (s *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Probe pings the database and publishes the result.
func (s *HealthServer) Probe(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		s.logger.Warn(ctx, "database probe failed", "error", err.Error())
	}
	s.SetServing(err == nil)
	if s.gauge != nil {
		s.gauge.SetDBUp(err == nil)
	}
	return err
}

// Register attaches the health service to srv.
func (s *HealthServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.health)
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve runs on an existing listener until ctx is cancelled.
func (s *HealthServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	s.Register(srv)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

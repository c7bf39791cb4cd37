package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "kanban.Cards"

// Pinger reports whether the backing store is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures StartGRPC.
type Options struct {
	Address string
	Store   Pinger
	Logger  *slog.Logger
	// ProbeInterval is how often Store is pinged. Defaults to 10s.
	ProbeInterval time.Duration
}

// StartGRPC starts the health listener and returns a shutdown function and
// the bound address. The server exposes grpc.health.v1.Health and reflection.
func StartGRPC(opts Options) (func(context.Context) error, string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	lis, err := net.Listen("tcp", opts.Address)
	if err != nil {
		return nil, "", err
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	probeCtx, stopProbe := context.WithCancel(context.Background())
	setStatus := func(st healthpb.HealthCheckResponse_ServingStatus) {
		hs.SetServingStatus("", st)
		hs.SetServingStatus(ServiceName, st)
	}
	probe := func() {
		st := healthpb.HealthCheckResponse_SERVING
		if opts.Store != nil {
			ctx, cancel := context.WithTimeout(probeCtx, 2*time.Second)
			if err := opts.Store.PingContext(ctx); err != nil {
				logger.Warn("store ping failed", "err", err)
				st = healthpb.HealthCheckResponse_NOT_SERVING
			}
			cancel()
		}
		setStatus(st)
	}
	probe()
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-probeCtx.Done():
				return
			case <-t.C:
				probe()
			}
		}
	}()

	go func() { _ = srv.Serve(lis) }()

	return func(ctx context.Context) error {
		stopProbe()
		hs.Shutdown()
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, lis.Addr().String(), nil
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.DebugContext(ctx, "grpc call", "method", info.FullMethod, "duration", time.Since(start), "err", err)
		return resp, err
	}
}

package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/rafaeljc/slipup/internal/logger"
)

// GRPCHealth serves grpc.health.v1 backed by the same checkers as the
// readiness probe. The overall service ("") is SERVING only when every
// checker passes; each checker is also exposed under its own name.
type GRPCHealth struct {
	logger   *slog.Logger
	checkers []Checker
	timeout  time.Duration
	health   *health.Server
	server   *grpc.Server
}

// NewGRPCHealth builds the server. All services start as NOT_SERVING until the first Sync.
func NewGRPCHealth(logger *slog.Logger, timeout time.Duration, checkers ...Checker) *GRPCHealth {
	g := &GRPCHealth{
		logger:   logger,
		checkers: checkers,
		timeout:  timeout,
		health:   health.NewServer(),
		server:   grpc.NewServer(grpc.UnaryInterceptor(RequestLoggerInterceptor(logger))),
	}

	healthpb.RegisterHealthServer(g.server, g.health)

	g.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, c := range checkers {
		g.health.SetServingStatus(c.Name(), healthpb.HealthCheckResponse_NOT_SERVING)
	}

	return g
}

// Sync runs the checkers once and publishes their status.
func (g *GRPCHealth) Sync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	overall := healthpb.HealthCheckResponse_SERVING
	for _, res := range RunChecks(ctx, g.checkers) {
		st := healthpb.HealthCheckResponse_SERVING
		if res.Err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		g.health.SetServingStatus(res.Name, st)
	}
	g.health.SetServingStatus("", overall)
}

// Run syncs every interval until ctx is cancelled.
func (g *GRPCHealth) Run(ctx context.Context, interval time.Duration) {
	g.Sync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sync(ctx)
		}
	}
}

// Serve blocks serving on lis.
func (g *GRPCHealth) Serve(lis net.Listener) error {
	g.logger.Info("starting grpc health server", slog.String("addr", lis.Addr().String()))
	return g.server.Serve(lis)
}

// Start listens on port and serves in the background.
func (g *GRPCHealth) Start(port string) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return fmt.Errorf("failed to listen for grpc health: %w", err)
	}

	go func() {
		if err := g.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			g.logger.Error("grpc health server failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Shutdown marks everything NOT_SERVING and stops the server gracefully.
func (g *GRPCHealth) Shutdown() {
	g.logger.Info("stopping grpc health server")
	g.health.Shutdown()
	g.server.GracefulStop()
}

// RequestLoggerInterceptor logs every unary RPC with a request id and injects
// the derived logger into the handler's context.
func RequestLoggerInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		// metadata map keys are normalized to lowercase
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-request-id"); len(ids) > 0 {
				reqID = ids[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}

		rpcLogger := base.With(
			slog.String("request_id", reqID),
			slog.String("rpc_method", info.FullMethod),
		)
		newCtx := logger.WithContext(ctx, rpcLogger)

		resp, err := handler(newCtx, req)

		st, _ := status.FromError(err)
		code := st.Code()

		// Health checks are polled constantly; only failures are worth more than debug.
		level := slog.LevelDebug
		switch code {
		case codes.Internal, codes.Unavailable, codes.DataLoss, codes.Unknown:
			level = slog.LevelError
		case codes.DeadlineExceeded, codes.Unimplemented:
			level = slog.LevelWarn
		}

		rpcLogger.Log(newCtx, level, "grpc request completed",
			slog.String("code", code.String()),
			slog.Duration("duration", time.Since(start)),
			slog.String("peer_addr", peerAddr(ctx)),
		)

		return resp, err
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok {
		return p.Addr.String()
	}
	return "unknown"
}

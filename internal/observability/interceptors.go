package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"live-transcription-service/internal/observability/metrics"
)

// UnaryServerInterceptor records admin unary calls (health checks, reflection).
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observeRPC(m, log.Debug(), info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor records admin streaming calls such as health Watch
// and reflection.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		observeRPC(m, log.Info(), info.FullMethod, start, err)
		return err
	}
}

func observeRPC(m *metrics.Metrics, ev *zerolog.Event, method string, start time.Time, err error) {
	elapsed := time.Since(start)
	code := status.Code(err).String()
	m.RecordRPC(method, code, elapsed.Seconds())
	ev.Str("method", method).
		Str("code", code).
		Dur("duration", elapsed).
		Bool("success", err == nil).
		Msg("admin rpc")
}

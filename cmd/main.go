package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"live-transcription-service/internal/api/ws"
	"live-transcription-service/internal/app"
	"live-transcription-service/internal/config"
	"live-transcription-service/internal/events"
	httpapi "live-transcription-service/internal/http"
	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability"
	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/merge"
	"live-transcription-service/internal/service/session"
	"live-transcription-service/internal/service/stt/providers"
	"live-transcription-service/internal/service/transcode"
	"live-transcription-service/internal/service/transcription"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	shutdownTracing, err := observability.SetupTracing(cfg.Observability.TracingEnabled, app.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	application := app.New(cfg)

	registry, err := providers.NewRegistry(cfg.STT, cfg.Session.TempDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid recognizer configuration")
	}
	defer registry.Close()

	// Kafka publisher with separate topics for partial and final transcripts
	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	language := cfg.STT.LanguageCode
	if cfg.STT.BatchProvider == providers.Google {
		language = cfg.STT.GoogleLanguageCode
	}
	batchFactory := transcription.NewBatchFactory(registry, transcode.NewFFmpeg(cfg.Transcoder.Command), transcription.BatchOptions{
		Interval: cfg.Session.ThrottleInterval,
		Language: language,
		Merger:   merge.Merger{MaxOverlap: cfg.Session.MergeMaxOverlap, MinOverlap: cfg.Session.MergeMinOverlap},
		TempDir:  cfg.Session.TempDir,
	})
	incrementalFactory := transcription.NewIncrementalFactory(registry)

	sessionOpts := session.Options{InboxSize: cfg.Session.InboxSize, Tap: publisher}
	router := httpapi.NewRouter(application, httpapi.Routes{
		Transcribe:  ws.NewHandler(session.NewController(models.ModeBatch, sessionOpts), batchFactory),
		Incremental: ws.NewHandler(session.NewController(models.ModeIncremental, sessionOpts), incrementalFactory),
	})

	// Hijacked WebSocket connections are not tracked by http.Server; sessions
	// watch this context instead and flush their final when it is cancelled.
	sessionsCtx, endSessions := context.WithCancel(context.Background())
	defer endSessions()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return sessionsCtx },
	}

	obsServer := observability.NewServer(":"+cfg.Observability.MetricsPort, application.Ready)
	obsServer.Start()

	// Admin gRPC: health and reflection only
	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("Live transcription service started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", lis.Addr().String()).Msg("Admin gRPC server started")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		application.Shutdown()
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		httpErr := httpServer.Shutdown(shutdownCtx)
		endSessions()
		if err := application.WaitIdle(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Open sessions did not finish before the shutdown deadline")
		}

		grpcServer.GracefulStop()
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Observability server shutdown failed")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Tracing shutdown failed")
		}
		return httpErr
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Service stopped")
}

// Package app holds process-wide state for the service.
package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/config"
	"live-transcription-service/internal/observability/logging"
)

// ServiceName identifies the service in logs and traces.
const ServiceName = "live-transcription-service"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	ready    atomic.Bool
	draining atomic.Bool
	sessions atomic.Int64
}

const drainPollInterval = 50 * time.Millisecond

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg: cfg,
		Logger: logging.WithComponent("application").With().
			Str("service", ServiceName).
			Logger(),
	}

	a.Logger.Info().
		Str("batchProvider", cfg.STT.BatchProvider).
		Str("incrementalProvider", cfg.STT.IncrementalProvider).
		Msg("Live transcription service application created")
	return a
}

// Start marks the application ready to serve traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)

	a.Logger.Info().
		Str("method", "Start").
		Time("startupTime", a.StartupTime).
		Msg("Live transcription service starting")
	return nil
}

// Ready reports whether the application accepts new sessions.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// SessionOpened and SessionClosed track connections currently being served.
// SessionOpened reports false once shutdown has begun; the caller must then
// release the slot with SessionClosed and refuse the session.
func (a *Application) SessionOpened() bool {
	a.sessions.Add(1)
	return !a.draining.Load()
}

func (a *Application) SessionClosed() { a.sessions.Add(-1) }

// ActiveSessions returns the number of open sessions.
func (a *Application) ActiveSessions() int64 {
	return a.sessions.Load()
}

// Draining reports whether shutdown has begun.
func (a *Application) Draining() bool {
	return a.draining.Load()
}

// Shutdown marks the application not ready and refuses new sessions. Open
// sessions are ended by cancelling the server base context; WaitIdle waits
// for them.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.draining.Store(true)

	a.Logger.Info().
		Str("method", "Shutdown").
		Int64("activeSessions", a.ActiveSessions()).
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("Live transcription service shutting down")
}

// WaitIdle blocks until no session is open or ctx is done.
func (a *Application) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for a.ActiveSessions() > 0 {
		select {
		case <-ctx.Done():
			a.Logger.Warn().
				Int64("activeSessions", a.ActiveSessions()).
				Msg("Sessions still open at shutdown deadline")
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

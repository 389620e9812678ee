// Package session runs one streaming transcription session per connection:
// it demultiplexes control and audio messages, drives the active strategy and
// guarantees exactly one terminal event on every exit path.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/schema"
	"live-transcription-service/internal/service/transcription"
)

const (
	// DefaultInboxSize bounds the frames queued between transport and strategy.
	DefaultInboxSize = 64

	progressEvery = 50

	outcomeFinal = "final"
	outcomeError = "error"
)

// MessageKind distinguishes inbound message payloads.
type MessageKind int

const (
	TextMessage MessageKind = iota + 1
	BinaryMessage
)

// Message is one inbound message from the client.
type Message struct {
	Kind MessageKind
	Data []byte
}

// Conn is the duplex channel of one session. Any Receive error is treated as
// a disconnect. Close must be idempotent.
type Conn interface {
	Receive() (Message, error)
	Send(ev models.TranscriptEvent) error
	Close() error
}

// Tap receives a copy of every transcript the session emits.
type Tap interface {
	Publish(ctx context.Context, record models.TranscriptRecord) error
}

// Options configures a Controller.
type Options struct {
	InboxSize int
	Tap       Tap
}

// Controller runs sessions of one mode.
type Controller struct {
	mode      string
	inboxSize int
	tap       Tap
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// NewController creates a controller for the given mode label.
func NewController(mode string, opts Options) *Controller {
	size := opts.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Controller{
		mode:      mode,
		inboxSize: size,
		tap:       opts.Tap,
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
	}
}

// Run serves one connection until stop, disconnect or failure, then closes
// it. Transport errors never escape; the client sees a final or an error.
func (c *Controller) Run(ctx context.Context, conn Conn, factory transcription.Factory) {
	id := uuid.NewString()
	s := &session{
		id:        id,
		mode:      c.mode,
		c:         c,
		conn:      conn,
		lifecycle: NewLifecycle(),
		logger:    logging.WithSession(id, c.mode),
	}

	start := time.Now()
	c.metrics.RecordSessionStart(c.mode)
	s.logger.Info().Msg("Session accepted")

	outcome := s.run(ctx, factory)

	s.lifecycle.Close()
	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Connection close failed")
	}
	c.metrics.RecordSessionEnd(c.mode, outcome, time.Since(start).Seconds())
	s.logger.Info().
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("Session closed")
}

type inboundKind int

const (
	inboundFrame inboundKind = iota
	inboundStop
	inboundDisconnect
)

type inbound struct {
	kind  inboundKind
	frame transcription.Frame
}

type session struct {
	id        string
	mode      string
	c         *Controller
	conn      Conn
	lifecycle *Lifecycle
	logger    zerolog.Logger
}

func (s *session) run(ctx context.Context, factory transcription.Factory) string {
	// In-flight recognition is not cancelled by a client disconnect.
	work := context.WithoutCancel(ctx)

	strategy, err := s.build(work, factory)
	if err != nil {
		s.logger.Error().Err(err).Msg("Recognition backend unavailable")
		s.fail(work, "backend_unavailable", err.Error())
		return outcomeError
	}
	defer func() {
		if err := strategy.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Strategy close failed")
		}
	}()
	s.logger = logging.WithBackend(s.id, s.mode, strategy.Provider())

	if err := s.lifecycle.Ready(); err != nil {
		s.logger.Error().Err(err).Msg("Unexpected lifecycle state")
		return outcomeError
	}
	s.send(work, models.Ready(), false)
	if err := s.lifecycle.Stream(); err != nil {
		s.logger.Error().Err(err).Msg("Unexpected lifecycle state")
		return outcomeError
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	inbox := make(chan inbound, s.c.inboxSize)
	go s.read(readCtx, inbox)

	return s.drive(work, strategy, inbox, ctx.Done())
}

// build runs the factory, turning a construction panic into an error.
func (s *session) build(ctx context.Context, factory transcription.Factory) (strategy transcription.Strategy, err error) {
	defer func() {
		if r := recover(); r != nil {
			strategy, err = nil, fmt.Errorf("backend construction panicked: %v", r)
		}
	}()
	return factory(ctx, s.id)
}

// drive processes the inbox until stop, disconnect or shutdown, then flushes.
func (s *session) drive(ctx context.Context, strategy transcription.Strategy, inbox <-chan inbound, shutdown <-chan struct{}) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("state", s.lifecycle.State().String()).Msg("Session fault")
			s.fail(ctx, "fault", fmt.Sprintf("internal error: %v", r))
			outcome = outcomeError
		}
	}()

	reason, processed := s.stream(ctx, strategy, inbox, shutdown)

	if err := s.lifecycle.Finish(); err != nil {
		s.logger.Warn().Err(err).Msg("Unexpected lifecycle state")
	}
	s.logger.Info().
		Str("reason", reason).
		Int("framesProcessed", processed).
		Msg("Session finishing")

	final, err := strategy.Flush(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Flush failed")
		s.fail(ctx, "flush", err.Error())
		return outcomeError
	}
	s.emitTerminal(ctx, final)
	return outcomeFinal
}

// stream returns the reason the session ended and the frames it processed.
// A closed shutdown channel ends the session like a stop signal, so the
// client still gets its final while the transport is open.
func (s *session) stream(ctx context.Context, strategy transcription.Strategy, inbox <-chan inbound, shutdown <-chan struct{}) (string, int) {
	processed := 0
	for {
		select {
		case <-shutdown:
			return "shutdown", processed
		case in, ok := <-inbox:
			if !ok {
				return "disconnect", processed
			}
			switch in.kind {
			case inboundStop:
				return "stop", processed
			case inboundDisconnect:
				return "disconnect", processed
			case inboundFrame:
				processed++
				if ev := strategy.OnFrame(ctx, in.frame); ev != nil {
					s.emitInterim(ctx, *ev)
				}
			}
		}
	}
}

// read pumps the transport into the inbox. Audio frames are dropped when the
// inbox is full; stop and disconnect are always delivered.
func (s *session) read(ctx context.Context, inbox chan<- inbound) {
	defer close(inbox)

	var seq uint64
	var received int64
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := s.conn.Receive()
		if err != nil {
			s.logger.Debug().Err(err).Msg("Transport disconnected")
			s.deliver(ctx, inbox, inbound{kind: inboundDisconnect})
			return
		}

		switch msg.Kind {
		case TextMessage:
			if IsStopSignal(string(msg.Data)) {
				s.deliver(ctx, inbox, inbound{kind: inboundStop})
				return
			}
			s.logger.Debug().Int("len", len(msg.Data)).Msg("Ignoring unrecognized control message")

		case BinaryMessage:
			if len(msg.Data) == 0 {
				continue
			}
			seq++
			received += int64(len(msg.Data))
			s.c.metrics.RecordAudioReceived(s.mode, len(msg.Data))
			if seq%progressEvery == 0 {
				s.logger.Info().
					Uint64("frames", seq).
					Int64("bytes", received).
					Msg("Audio progress")
			}

			frame := transcription.Frame{Seq: seq, At: time.Now(), Data: msg.Data}
			select {
			case inbox <- inbound{kind: inboundFrame, frame: frame}:
			default:
				s.c.metrics.RecordFrameDropped(s.mode, "inbox_full")
				s.logger.Warn().Uint64("seq", seq).Msg("Inbox full, frame dropped")
			}
		}
	}
}

func (s *session) deliver(ctx context.Context, inbox chan<- inbound, in inbound) {
	select {
	case inbox <- in:
	case <-ctx.Done():
	}
}

// fail reports an error as the terminal event.
func (s *session) fail(ctx context.Context, reason, message string) {
	if strings.TrimSpace(message) == "" {
		message = reason
	}
	s.c.metrics.RecordSessionError(s.mode, reason)
	s.emitTerminal(ctx, models.Error(message))
}

func (s *session) emitInterim(ctx context.Context, ev models.TranscriptEvent) {
	if err := s.lifecycle.EmitInterim(); err != nil {
		s.logger.Debug().Err(err).Str("type", ev.Type).Msg("Interim event suppressed")
		return
	}
	s.send(ctx, ev, false)
}

func (s *session) emitTerminal(ctx context.Context, ev models.TranscriptEvent) {
	if err := s.c.validator.Validate(ev); err != nil {
		s.logger.Error().Err(err).Str("type", ev.Type).Msg("Invalid terminal event replaced")
		ev = models.Error("internal error: " + err.Error())
	}
	if err := s.lifecycle.EmitTerminal(); err != nil {
		s.logger.Debug().Err(err).Str("type", ev.Type).Msg("Terminal event suppressed")
		return
	}
	s.send(ctx, ev, true)
}

// send validates, writes and taps one event. Write failures are expected
// after a disconnect and only logged.
func (s *session) send(ctx context.Context, ev models.TranscriptEvent, terminal bool) {
	if err := s.c.validator.Validate(ev); err != nil {
		s.logger.Error().Err(err).Str("type", ev.Type).Msg("Invalid event dropped")
		return
	}

	if err := s.conn.Send(ev); err != nil {
		s.logger.Debug().Err(err).Str("type", ev.Type).Msg("Event not delivered")
	} else {
		s.c.metrics.RecordEvent(s.mode, ev.Type)
		s.logger.Debug().
			Str("type", ev.Type).
			Str("text", ev.TextValue()).
			Bool("terminal", terminal).
			Msg("Event sent")
	}

	if s.c.tap == nil || ev.Text == nil {
		return
	}
	if err := s.c.tap.Publish(ctx, models.NewRecord(s.id, s.mode, ev, terminal, time.Now())); err != nil {
		s.logger.Warn().Err(err).Str("type", ev.Type).Msg("Transcript tap publish failed")
	}
}

// IsStopSignal reports whether a text message ends the session.
func IsStopSignal(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "stop", "close", "fim":
		return true
	default:
		return false
	}
}

package transcription

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/stt"
)

// Incremental forwards every frame to a recognizer owned by this session and
// relays its partial hypotheses and utterance finals.
type Incremental struct {
	sessionID  string
	provider   string
	recognizer stt.IncrementalRecognizer

	lastPartial string
	utterances  int

	logger    zerolog.Logger
	metrics   *metrics.Metrics
	closeOnce sync.Once
	closeErr  error
}

// NewIncremental creates an incremental strategy with a fresh recognizer.
func NewIncremental(ctx context.Context, sessionID string, registry *stt.Registry) (*Incremental, error) {
	recognizer, err := registry.Incremental(ctx)
	if err != nil {
		return nil, err
	}

	provider := registry.IncrementalProvider()
	return &Incremental{
		sessionID:  sessionID,
		provider:   provider,
		recognizer: recognizer,
		logger:     logging.WithBackend(sessionID, models.ModeIncremental, provider),
		metrics:    metrics.DefaultMetrics,
	}, nil
}

// NewIncrementalFactory returns a Factory producing incremental sessions.
func NewIncrementalFactory(registry *stt.Registry) Factory {
	return func(ctx context.Context, sessionID string) (Strategy, error) {
		i, err := NewIncremental(ctx, sessionID, registry)
		if err != nil {
			return nil, err
		}
		return i, nil
	}
}

func (i *Incremental) Mode() string     { return models.ModeIncremental }
func (i *Incremental) Provider() string { return i.provider }

// OnFrame feeds f to the recognizer. An utterance boundary yields a
// non-terminal final; otherwise a partial is returned only when it changed.
func (i *Incremental) OnFrame(ctx context.Context, f Frame) *models.TranscriptEvent {
	ctx, span := tracer.Start(ctx, "transcription.incremental.frame")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", i.sessionID),
		attribute.Int64("frame.seq", int64(f.Seq)),
	)

	start := time.Now()
	res, err := guarded(i.provider, func() (stt.FrameResult, error) {
		return i.recognizer.AcceptFrame(ctx, f.Data)
	})
	i.metrics.RecordRecognition(models.ModeIncremental, i.provider, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept frame")
		i.metrics.RecordSTTError(i.provider, "accept_frame")
		i.metrics.RecordFrameDropped(models.ModeIncremental, "recognition")
		i.logger.Warn().Err(err).Uint64("seq", f.Seq).Msg("Recognizer rejected frame, dropped")
		return nil
	}

	text := strings.TrimSpace(res.Text)
	if res.Final {
		i.lastPartial = ""
		if text == "" {
			return nil
		}
		i.utterances++
		i.metrics.RecordUtterance()
		i.logger.Info().Int("utterance", i.utterances).Str("text", text).Msg("Utterance finalized")
		ev := models.Final(text)
		return &ev
	}

	if text == "" || text == i.lastPartial {
		return nil
	}
	i.lastPartial = text
	ev := models.Partial(text)
	return &ev
}

// Flush finalizes the pending utterance and returns it as the terminal final.
func (i *Incremental) Flush(ctx context.Context) (models.TranscriptEvent, error) {
	text, err := i.recognizer.Finalize(ctx)
	if err != nil {
		var re *stt.RecognitionError
		if !errors.As(err, &re) {
			err = &stt.RecognitionError{Provider: i.provider, Err: err}
		}
		i.metrics.RecordSTTError(i.provider, "finalize")
		return models.TranscriptEvent{}, err
	}
	i.logger.Info().Int("utterances", i.utterances).Msg("Incremental session flushed")
	return models.Final(strings.TrimSpace(text)), nil
}

// Close releases the recognizer.
func (i *Incremental) Close() error {
	i.closeOnce.Do(func() {
		i.closeErr = i.recognizer.Close()
	})
	return i.closeErr
}

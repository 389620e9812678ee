package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/merge"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcode"
)

// DefaultThrottleInterval is the minimum spacing between batch cycles.
const DefaultThrottleInterval = 1500 * time.Millisecond

// BatchOptions configures chunked-batch sessions.
type BatchOptions struct {
	// Interval is the minimum spacing between cycles. Zero admits every frame.
	Interval time.Duration
	// Language is passed to the recognizer on every cycle.
	Language string
	Merger   merge.Merger
	// TempDir is the parent of per-session work directories, os.TempDir when empty.
	TempDir string
}

// DefaultBatchOptions returns the production defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		Interval: DefaultThrottleInterval,
		Language: "pt",
		Merger:   merge.Merger{MaxOverlap: merge.DefaultMaxOverlap, MinOverlap: merge.DefaultMinOverlap},
	}
}

// Batch is the chunked-batch strategy. Every admitted frame is an
// independently decodable container converted and recognized on its own; the
// fragments are folded into one growing transcript.
type Batch struct {
	sessionID  string
	provider   string
	recognizer stt.BatchRecognizer
	transcoder transcode.Transcoder
	limiter    *rate.Limiter
	language   string
	merger     merge.Merger
	dir        string

	transcript string
	cycles     int

	logger    zerolog.Logger
	metrics   *metrics.Metrics
	closeOnce sync.Once
	closeErr  error
}

// NewBatch creates a chunked-batch strategy using the registry's shared batch
// recognizer.
func NewBatch(ctx context.Context, sessionID string, registry *stt.Registry, transcoder transcode.Transcoder, opts BatchOptions) (*Batch, error) {
	recognizer, err := registry.Batch(ctx)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(opts.TempDir, "session-"+sessionID+"-")
	if err != nil {
		return nil, fmt.Errorf("create session work dir: %w", err)
	}

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	merger := opts.Merger
	if merger.MaxOverlap == 0 && merger.MinOverlap == 0 {
		merger = merge.Merger{MaxOverlap: merge.DefaultMaxOverlap, MinOverlap: merge.DefaultMinOverlap}
	}

	provider := registry.BatchProvider()
	return &Batch{
		sessionID:  sessionID,
		provider:   provider,
		recognizer: recognizer,
		transcoder: transcoder,
		limiter:    rate.NewLimiter(limit, 1),
		language:   opts.Language,
		merger:     merger,
		dir:        dir,
		logger:     logging.WithBackend(sessionID, models.ModeBatch, provider),
		metrics:    metrics.DefaultMetrics,
	}, nil
}

// NewBatchFactory returns a Factory producing chunked-batch sessions.
func NewBatchFactory(registry *stt.Registry, transcoder transcode.Transcoder, opts BatchOptions) Factory {
	return func(ctx context.Context, sessionID string) (Strategy, error) {
		b, err := NewBatch(ctx, sessionID, registry, transcoder, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (b *Batch) Mode() string     { return models.ModeBatch }
func (b *Batch) Provider() string { return b.provider }

// Transcript returns the accumulated text.
func (b *Batch) Transcript() string {
	return b.transcript
}

// Dir returns the session work directory.
func (b *Batch) Dir() string {
	return b.dir
}

// OnFrame runs a cycle when the throttle window has elapsed and returns the
// merged transcript as a partial. Frames inside the window are discarded.
func (b *Batch) OnFrame(ctx context.Context, f Frame) *models.TranscriptEvent {
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}
	if !b.limiter.AllowN(at, 1) {
		b.metrics.RecordFrameDropped(models.ModeBatch, "throttle")
		b.logger.Debug().Uint64("seq", f.Seq).Msg("Frame inside throttle window, dropped")
		return nil
	}

	text, err := b.cycle(ctx, f)
	if err != nil {
		reason := dropReason(err)
		b.metrics.RecordFrameDropped(models.ModeBatch, reason)
		b.logger.Warn().Err(err).Uint64("seq", f.Seq).Str("reason", reason).Msg("Cycle failed, frame dropped")
		return nil
	}
	if text == "" {
		return nil
	}

	b.transcript = b.merger.Merge(b.transcript, text)
	b.logger.Debug().
		Uint64("seq", f.Seq).
		Str("fragment", text).
		Int("transcriptLen", len(b.transcript)).
		Msg("Fragment merged")

	ev := models.Partial(b.transcript)
	return &ev
}

// cycle converts and recognizes one frame, returning the trimmed fragment.
func (b *Batch) cycle(ctx context.Context, f Frame) (string, error) {
	ctx, span := tracer.Start(ctx, "transcription.batch.cycle")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", b.sessionID),
		attribute.Int64("frame.seq", int64(f.Seq)),
		attribute.Int("frame.bytes", len(f.Data)),
	)

	start := time.Now()
	b.cycles++

	input := filepath.Join(b.dir, fmt.Sprintf("chunk_%d.webm", f.Seq))
	output := filepath.Join(b.dir, fmt.Sprintf("chunk_%d.wav", f.Seq))
	defer os.Remove(input)
	defer os.Remove(output)

	result := "ok"
	defer func() {
		b.metrics.RecordCycle(b.provider, result)
		b.metrics.RecordRecognition(models.ModeBatch, b.provider, time.Since(start).Seconds())
	}()

	fail := func(kind string, err error) (string, error) {
		result = kind
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		return "", err
	}

	if err := os.WriteFile(input, f.Data, 0o600); err != nil {
		return fail("io_error", fmt.Errorf("write chunk: %w", err))
	}
	if err := b.transcoder.Convert(ctx, input, output); err != nil {
		return fail("conversion_error", err)
	}
	pcm, err := transcode.ReadPCM(output)
	if err != nil {
		return fail("conversion_error", &transcode.ConversionError{Output: err.Error(), Err: err})
	}

	res, err := guarded(b.provider, func() (stt.BatchResult, error) {
		return b.recognizer.Transcribe(ctx, pcm, b.language)
	})
	if err != nil {
		var re *stt.RecognitionError
		if !errors.As(err, &re) {
			err = &stt.RecognitionError{Provider: b.provider, Err: err}
		}
		b.metrics.RecordSTTError(b.provider, "transcribe")
		return fail("recognition_error", err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		result = "empty"
	}
	span.SetAttributes(
		attribute.String("stt.language", res.DetectedLanguage),
		attribute.Float64("stt.duration_seconds", res.DurationSeconds),
	)
	return text, nil
}

// Flush returns the accumulated transcript as the terminal final. No extra
// cycle is run.
func (b *Batch) Flush(ctx context.Context) (models.TranscriptEvent, error) {
	b.logger.Info().
		Int("cycles", b.cycles).
		Int("transcriptLen", len(b.transcript)).
		Msg("Batch session flushed")
	return models.Final(b.transcript), nil
}

// Close removes the session work directory. The shared recognizer stays open.
func (b *Batch) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = os.RemoveAll(b.dir)
	})
	return b.closeErr
}

func dropReason(err error) string {
	var re *stt.RecognitionError
	switch {
	case transcode.IsConversionError(err):
		return "conversion"
	case errors.As(err, &re):
		return "recognition"
	default:
		return "io"
	}
}

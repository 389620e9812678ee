// Package transcription implements the two per-session recognition strategies:
// chunked-batch (convert, recognize, merge on a throttle) and incremental
// (frames forwarded to a stateful recognizer).
package transcription

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/service/stt"
)

var tracer = otel.Tracer("live-transcription-service/transcription")

// Frame is one inbound audio chunk owned by a session.
type Frame struct {
	Seq  uint64
	At   time.Time
	Data []byte
}

// Strategy drives one recognizer for one session. Calls are sequential.
type Strategy interface {
	// Mode is the session mode label (batch or incremental).
	Mode() string
	// Provider names the recognition backend.
	Provider() string
	// OnFrame processes one frame. Per-frame failures are absorbed and the
	// frame is dropped; a nil event means nothing to emit.
	OnFrame(ctx context.Context, f Frame) *models.TranscriptEvent
	// Flush returns the session-terminal final event.
	Flush(ctx context.Context) (models.TranscriptEvent, error)
	// Close releases session resources. It is safe to call more than once.
	Close() error
}

// Factory builds the strategy for a new session. A construction error is
// reported to the client and ends the session.
type Factory func(ctx context.Context, sessionID string) (Strategy, error)

// guarded runs one recognizer call, reporting a panic as a RecognitionError
// so the caller drops the frame instead of ending the session.
func guarded[T any](provider string, call func() (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &stt.RecognitionError{Provider: provider, Err: fmt.Errorf("recognizer panic: %v", r)}
		}
	}()
	return call()
}

// Package stt defines the recognition backends the transcription sessions
// drive. Two shapes exist: batch recognizers that transcribe a finite PCM
// buffer, and incremental recognizers that consume streamed frames and keep
// their own acoustic context.
package stt

import (
	"context"
	"errors"
	"fmt"

	"live-transcription-service/internal/service/transcode"
)

// ErrBackendUnavailable is returned when a recognizer cannot be constructed
// (model missing, binary absent, credentials rejected).
var ErrBackendUnavailable = errors.New("recognition backend unavailable")

// Unavailable wraps err so that errors.Is(err, ErrBackendUnavailable) holds.
func Unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, provider, err)
}

// RecognitionError reports a failed recognizer call.
type RecognitionError struct {
	Provider string
	Err      error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed (%s): %v", e.Provider, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// BatchResult is the outcome of one batch transcription.
type BatchResult struct {
	Text             string
	DetectedLanguage string
	DurationSeconds  float64
}

// BatchRecognizer transcribes finite buffers. Implementations may filter
// silence internally. Callers serialize calls within a session.
type BatchRecognizer interface {
	Transcribe(ctx context.Context, pcm transcode.PCM, language string) (BatchResult, error)
	Close() error
}

// FrameResult is the recognizer verdict for one accepted frame.
type FrameResult struct {
	// Final is true when the frame completed an utterance; Text is then the
	// finalized utterance, otherwise the current partial hypothesis.
	Final bool
	Text  string
}

// IncrementalRecognizer consumes PCM frames and owns the recognition state for
// one session. Methods must be called sequentially by a single owner.
type IncrementalRecognizer interface {
	AcceptFrame(ctx context.Context, frame []byte) (FrameResult, error)
	Finalize(ctx context.Context) (string, error)
	Close() error
}

// BatchFactory constructs the shared batch recognizer.
type BatchFactory func(ctx context.Context) (BatchRecognizer, error)

// IncrementalFactory constructs a fresh incremental recognizer.
type IncrementalFactory func(ctx context.Context) (IncrementalRecognizer, error)

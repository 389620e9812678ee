package stt

import (
	"context"
	"errors"
	"testing"

	"live-transcription-service/internal/service/transcode"
)

type fakeBatch struct {
	closed bool
}

func (f *fakeBatch) Transcribe(ctx context.Context, pcm transcode.PCM, language string) (BatchResult, error) {
	return BatchResult{Text: "ok", DetectedLanguage: language}, nil
}

func (f *fakeBatch) Close() error {
	f.closed = true
	return nil
}

type fakeIncremental struct{}

func (fakeIncremental) AcceptFrame(ctx context.Context, frame []byte) (FrameResult, error) {
	return FrameResult{}, nil
}

func (fakeIncremental) Finalize(ctx context.Context) (string, error) { return "", nil }

func (fakeIncremental) Close() error { return nil }

func TestRegistry_BatchBuiltOnce(t *testing.T) {
	builds := 0
	rec := &fakeBatch{}
	r := NewRegistry("fake", func(ctx context.Context) (BatchRecognizer, error) {
		builds++
		return rec, nil
	}, "", nil)

	for i := 0; i < 3; i++ {
		got, err := r.Batch(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != rec {
			t.Error("expected the shared recognizer instance")
		}
	}
	if builds != 1 {
		t.Errorf("expected 1 build, got %d", builds)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !rec.closed {
		t.Error("expected shared recognizer to be closed with the registry")
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestRegistry_BatchFailureNotCached(t *testing.T) {
	attempts := 0
	r := NewRegistry("fake", func(ctx context.Context) (BatchRecognizer, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("model missing")
		}
		return &fakeBatch{}, nil
	}, "", nil)

	_, err := r.Batch(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}

	if _, err := r.Batch(context.Background()); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRegistry_IncrementalFreshPerCall(t *testing.T) {
	builds := 0
	r := NewRegistry("", nil, "fake", func(ctx context.Context) (IncrementalRecognizer, error) {
		builds++
		return fakeIncremental{}, nil
	})

	for i := 0; i < 2; i++ {
		if _, err := r.Incremental(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if builds != 2 {
		t.Errorf("expected a fresh recognizer per call, got %d builds", builds)
	}
}

func TestRegistry_MissingProviders(t *testing.T) {
	r := NewRegistry("none", nil, "none", nil)

	if _, err := r.Batch(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable for batch, got %v", err)
	}
	if _, err := r.Incremental(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable for incremental, got %v", err)
	}
}

func TestRegistry_ClosedRejectsSessions(t *testing.T) {
	r := NewRegistry("fake", func(ctx context.Context) (BatchRecognizer, error) {
		return &fakeBatch{}, nil
	}, "fake", func(ctx context.Context) (IncrementalRecognizer, error) {
		return fakeIncremental{}, nil
	})
	r.Close()

	if _, err := r.Batch(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable after close, got %v", err)
	}
	if _, err := r.Incremental(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable after close, got %v", err)
	}
}

func TestRecognitionError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := error(&RecognitionError{Provider: "exec", Err: base})

	if !errors.Is(err, base) {
		t.Error("expected RecognitionError to unwrap to its cause")
	}
	var re *RecognitionError
	if !errors.As(err, &re) || re.Provider != "exec" {
		t.Error("expected errors.As to find RecognitionError")
	}
}

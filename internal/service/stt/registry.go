package stt

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry owns the process-wide recognizers. The batch recognizer is built
// once on first use and shared read-only across sessions; a failed build is
// not cached so a later session can retry. Incremental recognizers are built
// fresh for every session.
type Registry struct {
	batchProvider       string
	incrementalProvider string
	newBatch            BatchFactory
	newIncremental      IncrementalFactory

	mu     sync.Mutex
	batch  BatchRecognizer
	closed bool
}

// NewRegistry creates a registry from the given constructors. Either factory
// may be nil, in which case the corresponding mode reports ErrBackendUnavailable.
func NewRegistry(batchProvider string, newBatch BatchFactory, incrementalProvider string, newIncremental IncrementalFactory) *Registry {
	return &Registry{
		batchProvider:       batchProvider,
		incrementalProvider: incrementalProvider,
		newBatch:            newBatch,
		newIncremental:      newIncremental,
	}
}

// BatchProvider returns the configured batch provider name.
func (r *Registry) BatchProvider() string {
	return r.batchProvider
}

// IncrementalProvider returns the configured incremental provider name.
func (r *Registry) IncrementalProvider() string {
	return r.incrementalProvider
}

// Batch returns the shared batch recognizer, building it if needed.
func (r *Registry) Batch(ctx context.Context) (BatchRecognizer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, Unavailable(r.batchProvider, errors.New("registry closed"))
	}
	if r.batch != nil {
		return r.batch, nil
	}
	if r.newBatch == nil {
		return nil, Unavailable(r.batchProvider, errors.New("no batch provider configured"))
	}

	rec, err := r.newBatch(ctx)
	if err != nil {
		if !errors.Is(err, ErrBackendUnavailable) {
			err = Unavailable(r.batchProvider, err)
		}
		return nil, err
	}
	r.batch = rec

	log.Info().
		Str("component", "stt-registry").
		Str("provider", r.batchProvider).
		Msg("Batch recognizer loaded")
	return rec, nil
}

// Incremental builds a new incremental recognizer owned by the caller.
func (r *Registry) Incremental(ctx context.Context) (IncrementalRecognizer, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return nil, Unavailable(r.incrementalProvider, errors.New("registry closed"))
	}
	if r.newIncremental == nil {
		return nil, Unavailable(r.incrementalProvider, errors.New("no incremental provider configured"))
	}

	rec, err := r.newIncremental(ctx)
	if err != nil {
		if !errors.Is(err, ErrBackendUnavailable) {
			err = Unavailable(r.incrementalProvider, err)
		}
		return nil, err
	}
	return rec, nil
}

// Close releases the shared batch recognizer. Idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.batch != nil {
		err := r.batch.Close()
		r.batch = nil
		return err
	}
	return nil
}

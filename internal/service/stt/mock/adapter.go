// Package mock provides recognizers for running the service without a model.
// The incremental recognizer simulates realistic streaming behavior with
// progressive partial hypotheses and one final per utterance; the batch
// recognizer replays scripted transcripts.
package mock

import (
	"context"
	"errors"
	"sync"

	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcode"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials []string // Progressive partial hypotheses, one per frame
	Final    string   // Finalized utterance text
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials: []string{"bom", "bom dia", "bom dia tudo"},
		Final:    "bom dia tudo bem",
	},
	{
		Partials: []string{"eu queria", "eu queria ver", "eu queria ver o pedido"},
		Final:    "eu queria ver o pedido de ontem",
	},
	{
		Partials: []string{"pode", "pode mandar"},
		Final:    "pode mandar a proposta",
	},
	{
		Partials: []string{"obrigado"},
		Final:    "obrigado até logo",
	},
}

// utteranceCounter tracks which utterance a new recognizer starts with.
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// Incremental implements stt.IncrementalRecognizer with simulated output.
//
// Every accepted frame advances the current utterance by one partial; the
// frame after the last partial completes the utterance and moves on to the
// next one. Repeating the last partial once before finalizing mimics a
// recognizer that has not heard new words in a frame.
type Incremental struct {
	mu         sync.Mutex
	utterances []SimulatedUtterance
	current    int
	partial    int
	repeated   bool
	frames     int
	closed     bool
}

// NewIncremental creates a simulated incremental recognizer.
func NewIncremental() *Incremental {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return NewIncrementalWithScript(append(
		append([]SimulatedUtterance{}, DefaultUtterances[idx:]...),
		DefaultUtterances[:idx]...,
	))
}

// NewIncrementalWithScript creates a simulated recognizer that plays the given
// utterances in order.
func NewIncrementalWithScript(utterances []SimulatedUtterance) *Incremental {
	return &Incremental{utterances: utterances}
}

// AcceptFrame advances the simulation by one frame.
func (m *Incremental) AcceptFrame(ctx context.Context, frame []byte) (stt.FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return stt.FrameResult{}, errors.New("mock recognizer closed")
	}
	m.frames++
	if len(m.utterances) == 0 {
		return stt.FrameResult{}, nil
	}

	utt := m.utterances[m.current%len(m.utterances)]
	if m.partial < len(utt.Partials) {
		text := utt.Partials[m.partial]
		m.partial++
		return stt.FrameResult{Text: text}, nil
	}
	if !m.repeated && len(utt.Partials) > 0 {
		m.repeated = true
		return stt.FrameResult{Text: utt.Partials[len(utt.Partials)-1]}, nil
	}

	m.current++
	m.partial = 0
	m.repeated = false
	return stt.FrameResult{Final: true, Text: utt.Final}, nil
}

// Finalize completes the pending utterance. When no frame of the current
// utterance was heard the result is empty.
func (m *Incremental) Finalize(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", errors.New("mock recognizer closed")
	}
	if len(m.utterances) == 0 || m.partial == 0 {
		return "", nil
	}
	utt := m.utterances[m.current%len(m.utterances)]
	m.current++
	m.partial = 0
	m.repeated = false
	return utt.Final, nil
}

// Frames returns how many frames were accepted.
func (m *Incremental) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Close ends the mock session. Idempotent.
func (m *Incremental) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Batch implements stt.BatchRecognizer by replaying scripted transcripts, one
// per call, cycling when the script is exhausted.
type Batch struct {
	mu       sync.Mutex
	script   []string
	next     int
	calls    int
	language string
}

// DefaultBatchScript is replayed by NewBatch.
var DefaultBatchScript = []string{
	"bom dia",
	"bom dia tudo bem",
	"tudo bem com você",
}

// NewBatch creates a scripted batch recognizer with the default script.
func NewBatch() *Batch {
	return NewBatchWithScript(DefaultBatchScript)
}

// NewBatchWithScript creates a scripted batch recognizer.
func NewBatchWithScript(script []string) *Batch {
	return &Batch{script: append([]string{}, script...), language: "pt"}
}

// Transcribe returns the next scripted transcript.
func (b *Batch) Transcribe(ctx context.Context, pcm transcode.PCM, language string) (stt.BatchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	detected := language
	if detected == "" {
		detected = b.language
	}
	res := stt.BatchResult{
		DetectedLanguage: detected,
		DurationSeconds:  pcm.Duration().Seconds(),
	}
	if len(b.script) == 0 {
		return res, nil
	}
	res.Text = b.script[b.next%len(b.script)]
	b.next++
	return res, nil
}

// Calls returns how many transcriptions ran.
func (b *Batch) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Close is a no-op.
func (b *Batch) Close() error {
	return nil
}

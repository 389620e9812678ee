package exec

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	osexec "os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"live-transcription-service/internal/service/stt"
)

// IncrementalConfig configures the streaming child process.
type IncrementalConfig struct {
	Command         string // e.g. "vosk-stream"
	ModelPath       string // passed as --model when set
	SampleRate      int    // passed as --sample-rate
	MaxAlternatives int    // passed as --max-alternatives
	StartTimeout    time.Duration
}

// Wire protocol with the child process:
//
//	stdout, once:      {"ready":true} or {"ready":false,"error":"..."}
//	stdin, per frame:  uint32 big-endian length, then PCM bytes
//	stdout, per frame: {"final":bool,"text":"..."}
//
// A zero-length frame asks the child to finalize the pending utterance; it
// answers with one {"final":true,"text":"..."} line.
type handshake struct {
	Ready bool   `json:"ready"`
	Error string `json:"error"`
}

type frameResponse struct {
	Final bool   `json:"final"`
	Text  string `json:"text"`
}

// Incremental drives one recognizer child process for one session.
type Incremental struct {
	cmd    *osexec.Cmd
	stderr *bytes.Buffer
	stream *frameStream

	closeOnce sync.Once
	closeErr  error
}

// NewIncremental starts the child process and waits for its handshake. A
// process that exits or reports an error before becoming ready makes the
// backend unavailable.
func NewIncremental(ctx context.Context, cfg IncrementalConfig) (*Incremental, error) {
	args, err := parseCommand(cfg.Command)
	if err != nil {
		return nil, stt.Unavailable(providerName, err)
	}
	if cfg.SampleRate > 0 {
		args = append(args, "--sample-rate", fmt.Sprint(cfg.SampleRate))
	}
	if cfg.MaxAlternatives > 0 {
		args = append(args, "--max-alternatives", fmt.Sprint(cfg.MaxAlternatives))
	}
	if cfg.ModelPath != "" {
		args = append(args, "--model", cfg.ModelPath)
	}

	// The child lives for the session, not for the request that created it.
	cmd := osexec.Command(args[0], args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, stt.Unavailable(providerName, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, stt.Unavailable(providerName, err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, stt.Unavailable(providerName, err)
	}

	inc := &Incremental{cmd: cmd, stderr: stderr, stream: newFrameStream(stdin, stdout)}

	timeout := cfg.StartTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := inc.stream.awaitReady(hctx); err != nil {
		inc.Close()
		return nil, stt.Unavailable(providerName, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	log.Debug().
		Str("component", "stt-exec").
		Int("pid", cmd.Process.Pid).
		Msg("Incremental recognizer process ready")
	return inc, nil
}

// AcceptFrame forwards one PCM frame and returns the child's verdict.
func (i *Incremental) AcceptFrame(ctx context.Context, frame []byte) (stt.FrameResult, error) {
	if len(frame) == 0 {
		return stt.FrameResult{}, nil
	}
	res, err := i.stream.exchange(ctx, frame)
	if err != nil {
		return stt.FrameResult{}, &stt.RecognitionError{Provider: providerName, Err: err}
	}
	return stt.FrameResult{Final: res.Final, Text: strings.TrimSpace(res.Text)}, nil
}

// Finalize asks the child to finish the pending utterance.
func (i *Incremental) Finalize(ctx context.Context) (string, error) {
	res, err := i.stream.exchange(ctx, nil)
	if err != nil {
		return "", &stt.RecognitionError{Provider: providerName, Err: err}
	}
	return strings.TrimSpace(res.Text), nil
}

// Close ends the child process. Closing stdin lets it exit on its own; it is
// killed if it does not within a short grace period. Idempotent.
func (i *Incremental) Close() error {
	i.closeOnce.Do(func() {
		i.stream.close()

		done := make(chan error, 1)
		go func() { done <- i.cmd.Wait() }()

		select {
		case err := <-done:
			var exitErr *osexec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				i.closeErr = err
			}
		case <-time.After(2 * time.Second):
			if i.cmd.Process != nil {
				_ = i.cmd.Process.Kill()
			}
			<-done
		}
	})
	return i.closeErr
}

// frameStream implements the framing over the child's pipes. Exchanges are
// strictly sequential; the mutex enforces one call in flight.
type frameStream struct {
	mu     sync.Mutex
	w      io.WriteCloser
	r      *bufio.Reader
	broken error
}

func newFrameStream(w io.WriteCloser, r io.Reader) *frameStream {
	return &frameStream{w: w, r: bufio.NewReader(r)}
}

func (s *frameStream) awaitReady(ctx context.Context) error {
	line, err := s.readLine(ctx)
	if err != nil {
		return fmt.Errorf("recognizer handshake: %w", err)
	}
	var hs handshake
	if err := json.Unmarshal(line, &hs); err != nil {
		return fmt.Errorf("decode handshake: %w", err)
	}
	if !hs.Ready {
		if hs.Error == "" {
			hs.Error = "recognizer not ready"
		}
		return errors.New(hs.Error)
	}
	return nil
}

func (s *frameStream) exchange(ctx context.Context, frame []byte) (frameResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken != nil {
		return frameResponse{}, s.broken
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
	if _, err := s.w.Write(header[:]); err != nil {
		return frameResponse{}, s.fail(fmt.Errorf("write frame header: %w", err))
	}
	if len(frame) > 0 {
		if _, err := s.w.Write(frame); err != nil {
			return frameResponse{}, s.fail(fmt.Errorf("write frame: %w", err))
		}
	}

	line, err := s.readLine(ctx)
	if err != nil {
		return frameResponse{}, s.fail(err)
	}
	var resp frameResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		// A malformed line does not desynchronize the stream; one line per frame.
		return frameResponse{}, fmt.Errorf("decode recognizer response: %w", err)
	}
	return resp, nil
}

// fail marks the stream unusable after an I/O error.
func (s *frameStream) fail(err error) error {
	s.broken = err
	return err
}

// readLine reads one response line. The read itself is not interruptible; a
// cancelled context abandons it and the stream is marked broken.
func (s *frameStream) readLine(ctx context.Context) ([]byte, error) {
	type result struct {
		line []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := s.r.ReadBytes('\n')
		ch <- result{line: bytes.TrimSpace(line), err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil && len(res.line) == 0 {
			return nil, fmt.Errorf("read recognizer response: %w", res.err)
		}
		return res.line, nil
	case <-ctx.Done():
		s.broken = ctx.Err()
		return nil, ctx.Err()
	}
}

func (s *frameStream) close() {
	_ = s.w.Close()
}

// Package exec runs recognizers as external processes. The batch recognizer
// invokes a command once per buffer; the incremental recognizer keeps one
// child process alive for the whole session.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcode"
)

const providerName = "exec"

// BatchConfig configures the external batch recognizer.
type BatchConfig struct {
	Command     string // e.g. "whisper-cli --threads 4"
	Model       string // passed as --model when set
	Device      string // passed as --device when set
	ComputeType string // passed as --compute-type when set
	VADFilter   bool   // adds --vad-filter
	TempDir     string
}

type batchResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Batch writes each buffer to a temporary WAV file and runs the command with
// --audio <file> --language <code>. The command prints one JSON object
// {"text", "language", "duration"} on stdout.
type Batch struct {
	cmd []string
	cfg BatchConfig
	mu  sync.Mutex
}

// NewBatch validates the command and resolves its executable.
func NewBatch(cfg BatchConfig) (*Batch, error) {
	args, err := parseCommand(cfg.Command)
	if err != nil {
		return nil, stt.Unavailable(providerName, err)
	}
	if _, err := osexec.LookPath(args[0]); err != nil {
		return nil, stt.Unavailable(providerName, fmt.Errorf("recognizer executable: %w", err))
	}
	return &Batch{cmd: args, cfg: cfg}, nil
}

// Transcribe runs one recognition. Calls are serialized.
func (b *Batch) Transcribe(ctx context.Context, pcm transcode.PCM, language string) (stt.BatchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	file, err := os.CreateTemp(b.cfg.TempDir, "stt_batch_*.wav")
	if err != nil {
		return stt.BatchResult{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := transcode.WritePCM(file, pcm); err != nil {
		return stt.BatchResult{}, err
	}

	args := append([]string{}, b.cmd[1:]...)
	args = append(args, "--audio", file.Name())
	if language != "" {
		args = append(args, "--language", language)
	}
	if b.cfg.Model != "" {
		args = append(args, "--model", b.cfg.Model)
	}
	if b.cfg.Device != "" {
		args = append(args, "--device", b.cfg.Device)
	}
	if b.cfg.ComputeType != "" {
		args = append(args, "--compute-type", b.cfg.ComputeType)
	}
	if b.cfg.VADFilter {
		args = append(args, "--vad-filter")
	}

	command := osexec.CommandContext(ctx, b.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return stt.BatchResult{}, &stt.RecognitionError{
			Provider: providerName,
			Err:      fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	var resp batchResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return stt.BatchResult{}, &stt.RecognitionError{
			Provider: providerName,
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}
	return stt.BatchResult{
		Text:             strings.TrimSpace(resp.Text),
		DetectedLanguage: resp.Language,
		DurationSeconds:  resp.Duration,
	}, nil
}

// Close is a no-op; no process outlives a call.
func (b *Batch) Close() error {
	return nil
}

func parseCommand(command string) ([]string, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("recognizer command is empty")
	}
	return args, nil
}

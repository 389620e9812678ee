// Package transcode converts compressed audio chunks into the fixed PCM format
// expected by the batch recognizers (mono, 16 kHz, 16-bit WAV).
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

const (
	// TargetSampleRate is the sample rate of every converted file.
	TargetSampleRate = 16000
	// TargetChannels is the channel count of every converted file.
	TargetChannels = 1

	// maxDiagnostics bounds the tool output carried by ConversionError.
	maxDiagnostics = 2000
)

// Transcoder converts one self-contained compressed audio file into PCM WAV.
type Transcoder interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// ConversionError reports a failed conversion with the tail of the tool output.
type ConversionError struct {
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("audio conversion failed: %v", e.Err)
	}
	return fmt.Sprintf("audio conversion failed: %v: %s", e.Err, e.Output)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// FFmpeg runs an ffmpeg binary once per conversion. There are no retries.
type FFmpeg struct {
	// Command is the ffmpeg executable, "ffmpeg" when empty.
	Command string
}

// NewFFmpeg returns a transcoder using the given executable.
func NewFFmpeg(command string) *FFmpeg {
	return &FFmpeg{Command: command}
}

// Convert writes a mono 16 kHz WAV rendition of inputPath to outputPath.
func (f *FFmpeg) Convert(ctx context.Context, inputPath, outputPath string) error {
	command := f.Command
	if command == "" {
		command = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, command,
		"-y",
		"-i", inputPath,
		"-ac", fmt.Sprint(TargetChannels),
		"-ar", fmt.Sprint(TargetSampleRate),
		"-f", "wav",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		out := tail(stderr.String(), maxDiagnostics)
		if out == "" {
			out = "ffmpeg failed"
		}
		return &ConversionError{Output: out, Err: err}
	}
	return nil
}

// IsConversionError reports whether err carries a ConversionError.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

// tail returns at most the last n characters of s.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

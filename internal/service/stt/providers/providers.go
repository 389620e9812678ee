// Package providers maps configured provider names to recognizer constructors.
package providers

import (
	"context"
	"fmt"

	"live-transcription-service/internal/config"
	"live-transcription-service/internal/service/stt"
	sttexec "live-transcription-service/internal/service/stt/exec"
	"live-transcription-service/internal/service/stt/google"
	"live-transcription-service/internal/service/stt/mock"
)

// Provider names accepted in configuration.
const (
	Mock   = "mock"
	Exec   = "exec"
	Google = "google"
)

// NewRegistry builds the recognizer registry for the configured providers.
// Recognizers are constructed lazily, so a missing model only fails the
// sessions that need it.
func NewRegistry(cfg config.STTConfig, tempDir string) (*stt.Registry, error) {
	newBatch, err := batchFactory(cfg, tempDir)
	if err != nil {
		return nil, err
	}
	newIncremental, err := incrementalFactory(cfg)
	if err != nil {
		return nil, err
	}
	return stt.NewRegistry(cfg.BatchProvider, newBatch, cfg.IncrementalProvider, newIncremental), nil
}

func batchFactory(cfg config.STTConfig, tempDir string) (stt.BatchFactory, error) {
	switch cfg.BatchProvider {
	case Mock:
		return func(ctx context.Context) (stt.BatchRecognizer, error) {
			return mock.NewBatch(), nil
		}, nil
	case Exec:
		return func(ctx context.Context) (stt.BatchRecognizer, error) {
			return sttexec.NewBatch(sttexec.BatchConfig{
				Command:     cfg.BatchCommand,
				Model:       cfg.Model,
				Device:      cfg.Device,
				ComputeType: cfg.ComputeType,
				VADFilter:   cfg.VADFilter,
				TempDir:     tempDir,
			})
		}, nil
	case Google:
		return func(ctx context.Context) (stt.BatchRecognizer, error) {
			gcfg := google.DefaultConfig()
			gcfg.LanguageCode = cfg.GoogleLanguageCode
			gcfg.SampleRateHz = int32(cfg.SampleRateHz)
			gcfg.MaxAlternatives = int32(cfg.MaxAlternatives)
			gcfg.CredentialsFile = cfg.GoogleCredentialsFile
			return google.New(ctx, gcfg)
		}, nil
	default:
		return nil, fmt.Errorf("unknown batch provider %q", cfg.BatchProvider)
	}
}

func incrementalFactory(cfg config.STTConfig) (stt.IncrementalFactory, error) {
	switch cfg.IncrementalProvider {
	case Mock:
		return func(ctx context.Context) (stt.IncrementalRecognizer, error) {
			return mock.NewIncremental(), nil
		}, nil
	case Exec:
		return func(ctx context.Context) (stt.IncrementalRecognizer, error) {
			return sttexec.NewIncremental(ctx, sttexec.IncrementalConfig{
				Command:         cfg.IncrementalCommand,
				ModelPath:       cfg.IncrementalModelPath,
				SampleRate:      cfg.SampleRateHz,
				MaxAlternatives: cfg.MaxAlternatives,
				StartTimeout:    cfg.StartTimeout,
			})
		}, nil
	default:
		return nil, fmt.Errorf("unknown incremental provider %q", cfg.IncrementalProvider)
	}
}

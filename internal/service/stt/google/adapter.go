// Package google provides a Google Cloud Speech-to-Text batch recognizer.
package google

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcode"
)

const providerName = "google"

// Config holds Google STT configuration.
type Config struct {
	LanguageCode    string // e.g. "pt-BR"; used when the caller passes none
	SampleRateHz    int32  // must match the PCM handed to Transcribe
	AudioEncoding   string // LINEAR16 for transcoded chunks
	MaxAlternatives int32
	CredentialsFile string // optional; falls back to application default credentials
}

// DefaultConfig returns sensible defaults for transcoded 16 kHz chunks.
func DefaultConfig() Config {
	return Config{
		LanguageCode:    "pt-BR",
		SampleRateHz:    transcode.TargetSampleRate,
		AudioEncoding:   "LINEAR16",
		MaxAlternatives: 1,
	}
}

// Adapter implements stt.BatchRecognizer using synchronous Recognize calls.
type Adapter struct {
	client *speech.Client
	cfg    Config
}

// New creates a new Google batch recognizer.
// Requires GOOGLE_APPLICATION_CREDENTIALS or Config.CredentialsFile.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, stt.Unavailable(providerName, err)
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// Transcribe sends the buffer to Recognize and joins the top alternatives.
func (a *Adapter) Transcribe(ctx context.Context, pcm transcode.PCM, language string) (stt.BatchResult, error) {
	req := buildRequest(a.cfg, pcm, language)

	resp, err := a.client.Recognize(ctx, req)
	if err != nil {
		return stt.BatchResult{}, &stt.RecognitionError{Provider: providerName, Err: err}
	}

	res := parseResponse(resp)
	if res.DetectedLanguage == "" {
		res.DetectedLanguage = req.Config.LanguageCode
	}
	if res.DurationSeconds == 0 {
		res.DurationSeconds = pcm.Duration().Seconds()
	}
	return res, nil
}

// Close releases the gRPC connection.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func buildRequest(cfg Config, pcm transcode.PCM, language string) *speechpb.RecognizeRequest {
	if language == "" {
		language = cfg.LanguageCode
	}
	rate := cfg.SampleRateHz
	if pcm.SampleRate > 0 {
		rate = int32(pcm.SampleRate)
	}
	alternatives := cfg.MaxAlternatives
	if alternatives <= 0 {
		alternatives = 1
	}
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        parseAudioEncoding(cfg.AudioEncoding),
			SampleRateHertz: rate,
			LanguageCode:    language,
			MaxAlternatives: alternatives,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm.Data},
		},
	}
}

func parseResponse(resp *speechpb.RecognizeResponse) stt.BatchResult {
	var parts []string
	var res stt.BatchResult
	for _, r := range resp.GetResults() {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
		if res.DetectedLanguage == "" {
			res.DetectedLanguage = r.GetLanguageCode()
		}
		if end := r.GetResultEndTime(); end != nil {
			res.DurationSeconds = end.AsDuration().Seconds()
		}
	}
	res.Text = strings.Join(parts, " ")
	return res
}

// parseAudioEncoding converts a string encoding to the protobuf enum.
func parseAudioEncoding(enc string) speechpb.RecognitionConfig_AudioEncoding {
	switch enc {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// Package config loads service configuration from an optional YAML file and
// environment variables. Environment values override the file; unparsable
// values fall back to the current setting.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	STT           STTConfig           `yaml:"stt"`
	Transcoder    TranscoderConfig    `yaml:"transcoder"`
	Session       SessionConfig       `yaml:"session"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal     string `yaml:"principal"`
	HTTPPort      string `yaml:"httpPort"`
	GRPCPort      string `yaml:"grpcPort"`
	ClientLogPath string `yaml:"clientLogPath"`
}

// STTConfig selects and configures the recognition backends.
type STTConfig struct {
	BatchProvider       string `yaml:"batchProvider"`       // mock, exec, google
	IncrementalProvider string `yaml:"incrementalProvider"` // mock, exec
	LanguageCode        string `yaml:"languageCode"`
	SampleRateHz        int    `yaml:"sampleRateHz"`
	MaxAlternatives     int    `yaml:"maxAlternatives"`

	BatchCommand string `yaml:"batchCommand"`
	Model        string `yaml:"model"`
	Device       string `yaml:"device"`
	ComputeType  string `yaml:"computeType"`
	VADFilter    bool   `yaml:"vadFilter"`

	IncrementalCommand   string        `yaml:"incrementalCommand"`
	IncrementalModelPath string        `yaml:"incrementalModelPath"`
	StartTimeout         time.Duration `yaml:"startTimeout"`

	GoogleCredentialsFile string `yaml:"googleCredentialsFile"`
	GoogleLanguageCode    string `yaml:"googleLanguageCode"`
}

// TranscoderConfig configures the external audio converter.
type TranscoderConfig struct {
	Command string `yaml:"command"`
}

// SessionConfig holds per-session pacing and merge parameters.
type SessionConfig struct {
	ThrottleInterval time.Duration `yaml:"throttleInterval"`
	InboxSize        int           `yaml:"inboxSize"`
	MergeMaxOverlap  int           `yaml:"mergeMaxOverlap"`
	MergeMinOverlap  int           `yaml:"mergeMinOverlap"`
	TempDir          string        `yaml:"tempDir"`
}

// KafkaConfig configures the optional transcript event tap.
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topicPartial"`
	TopicFinal   string   `yaml:"topicFinal"`
	Principal    string   `yaml:"principal"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"logLevel"`
	LogFormat      string `yaml:"logFormat"`
	MetricsPort    string `yaml:"metricsPort"`
	TracingEnabled bool   `yaml:"tracingEnabled"`
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:     "svc-live-transcription",
			HTTPPort:      "8000",
			GRPCPort:      "50051",
			ClientLogPath: "logs/client.log",
		},
		STT: STTConfig{
			BatchProvider:        "mock",
			IncrementalProvider:  "mock",
			LanguageCode:         "pt",
			SampleRateHz:         16000,
			MaxAlternatives:      1,
			BatchCommand:         "whisper-transcribe",
			Model:                "small",
			Device:               "cpu",
			ComputeType:          "int8",
			VADFilter:            true,
			IncrementalCommand:   "vosk-stream",
			StartTimeout:         60 * time.Second,
			GoogleLanguageCode:   "pt-BR",
			IncrementalModelPath: "",
		},
		Transcoder: TranscoderConfig{
			Command: "ffmpeg",
		},
		Session: SessionConfig{
			ThrottleInterval: 1500 * time.Millisecond,
			InboxSize:        64,
			MergeMaxOverlap:  80,
			MergeMinOverlap:  6,
		},
		Kafka: KafkaConfig{
			TopicPartial: "transcription.transcript.partial",
			TopicFinal:   "transcription.transcript.final",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: "9090",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and the environment.
func Load() *Configuration {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	cfg.applyEnv()
	return cfg
}

// LoadFile builds the configuration from defaults, the given YAML file and the
// environment. Unlike Load, a bad file is an error.
func LoadFile(path string) (*Configuration, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Configuration) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Configuration) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.HTTPPort = envOrDefault("HTTP_PORT", c.Service.HTTPPort)
	c.Service.GRPCPort = envOrDefault("GRPC_PORT", c.Service.GRPCPort)
	c.Service.ClientLogPath = envOrDefault("CLIENT_LOG_PATH", c.Service.ClientLogPath)

	c.STT.BatchProvider = envOrDefault("STT_BATCH_PROVIDER", c.STT.BatchProvider)
	c.STT.IncrementalProvider = envOrDefault("STT_INCREMENTAL_PROVIDER", c.STT.IncrementalProvider)
	c.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", c.STT.LanguageCode)
	c.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", c.STT.SampleRateHz)
	c.STT.MaxAlternatives = envOrDefaultInt("STT_MAX_ALTERNATIVES", c.STT.MaxAlternatives)
	c.STT.BatchCommand = envOrDefault("STT_BATCH_COMMAND", c.STT.BatchCommand)
	c.STT.Model = envOrDefault("STT_MODEL", c.STT.Model)
	c.STT.Device = envOrDefault("STT_DEVICE", c.STT.Device)
	c.STT.ComputeType = envOrDefault("STT_COMPUTE_TYPE", c.STT.ComputeType)
	c.STT.VADFilter = envOrDefaultBool("STT_VAD_FILTER", c.STT.VADFilter)
	c.STT.IncrementalCommand = envOrDefault("STT_INCREMENTAL_COMMAND", c.STT.IncrementalCommand)
	c.STT.IncrementalModelPath = envOrDefault("STT_INCREMENTAL_MODEL_PATH", c.STT.IncrementalModelPath)
	c.STT.StartTimeout = envOrDefaultDuration("STT_START_TIMEOUT", c.STT.StartTimeout)
	c.STT.GoogleCredentialsFile = envOrDefault("GOOGLE_CREDENTIALS_FILE", c.STT.GoogleCredentialsFile)
	c.STT.GoogleLanguageCode = envOrDefault("STT_GOOGLE_LANGUAGE_CODE", c.STT.GoogleLanguageCode)

	c.Transcoder.Command = envOrDefault("TRANSCODER_COMMAND", c.Transcoder.Command)

	if ms := envOrDefaultInt("SESSION_THROTTLE_INTERVAL_MS", -1); ms >= 0 {
		c.Session.ThrottleInterval = time.Duration(ms) * time.Millisecond
	}
	c.Session.InboxSize = envOrDefaultInt("SESSION_INBOX_SIZE", c.Session.InboxSize)
	c.Session.MergeMaxOverlap = envOrDefaultInt("MERGE_MAX_OVERLAP", c.Session.MergeMaxOverlap)
	c.Session.MergeMinOverlap = envOrDefaultInt("MERGE_MIN_OVERLAP", c.Session.MergeMinOverlap)
	c.Session.TempDir = envOrDefault("SESSION_TEMP_DIR", c.Session.TempDir)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", c.Kafka.TopicPartial)
	c.Kafka.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", c.Kafka.TopicFinal)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsPort = envOrDefault("METRICS_PORT", c.Observability.MetricsPort)
	c.Observability.TracingEnabled = envOrDefaultBool("TRACING_ENABLED", c.Observability.TracingEnabled)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   *prometheus.CounterVec
	SessionsActive  *prometheus.GaugeVec
	SessionDuration *prometheus.HistogramVec
	SessionErrors   *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived  *prometheus.CounterVec
	AudioFramesReceived *prometheus.CounterVec
	FramesDropped       *prometheus.CounterVec

	// Transcript metrics
	TranscriptEvents *prometheus.CounterVec
	Utterances       prometheus.Counter

	// Recognition metrics
	CycleLatency *prometheus.HistogramVec
	CyclesTotal  *prometheus.CounterVec
	STTErrors    *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Admin gRPC metrics
	RPCTotal    *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of streaming sessions started",
		}, []string{"mode"}),
		SessionsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open streaming sessions",
		}, []string{"mode"}),
		SessionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of streaming sessions in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"mode", "outcome"}),
		SessionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Total number of sessions ended with an error event",
		}, []string{"mode", "reason"}),

		// Audio metrics
		AudioBytesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}, []string{"mode"}),
		AudioFramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}, []string{"mode"}),
		FramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Total audio frames dropped without producing a transcript",
		}, []string{"mode", "reason"}),

		// Transcript metrics
		TranscriptEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_events_total",
			Help:      "Total number of events sent to clients",
		}, []string{"mode", "type"}),
		Utterances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of utterance boundaries reported by incremental recognizers",
		}),

		// Recognition metrics
		CycleLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_latency_seconds",
			Help:      "Latency of one convert+recognize cycle or one incremental frame call",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"mode", "provider"}),
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_cycles_total",
			Help:      "Total number of batch recognition cycles by result",
		}, []string{"provider", "result"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Admin gRPC metrics
		RPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of admin gRPC calls",
		}, []string{"method", "code"}),
		RPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_call_duration_seconds",
			Help:      "Duration of admin gRPC calls in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 10, 60},
		}, []string{"method"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart(mode string) {
	m.SessionsTotal.WithLabelValues(mode).Inc()
	m.SessionsActive.WithLabelValues(mode).Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(mode, outcome string, durationSeconds float64) {
	m.SessionsActive.WithLabelValues(mode).Dec()
	m.SessionDuration.WithLabelValues(mode, outcome).Observe(durationSeconds)
}

// RecordSessionError records a session reporting an error event.
func (m *Metrics) RecordSessionError(mode, reason string) {
	m.SessionErrors.WithLabelValues(mode, reason).Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(mode string, bytes int) {
	m.AudioBytesReceived.WithLabelValues(mode).Add(float64(bytes))
	m.AudioFramesReceived.WithLabelValues(mode).Inc()
}

// RecordFrameDropped records a frame that produced no work or no transcript.
func (m *Metrics) RecordFrameDropped(mode, reason string) {
	m.FramesDropped.WithLabelValues(mode, reason).Inc()
}

// RecordEvent records an event sent to a client.
func (m *Metrics) RecordEvent(mode, eventType string) {
	m.TranscriptEvents.WithLabelValues(mode, eventType).Inc()
}

// RecordUtterance records an utterance boundary detection.
func (m *Metrics) RecordUtterance() {
	m.Utterances.Inc()
}

// RecordRecognition records the latency of one recognizer call.
func (m *Metrics) RecordRecognition(mode, provider string, latencySeconds float64) {
	m.CycleLatency.WithLabelValues(mode, provider).Observe(latencySeconds)
}

// RecordCycle records the result of a batch cycle (ok, empty, conversion_error, recognition_error).
func (m *Metrics) RecordCycle(provider, result string) {
	m.CyclesTotal.WithLabelValues(provider, result).Inc()
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRPC records an admin gRPC call.
func (m *Metrics) RecordRPC(method, code string, durationSeconds float64) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(durationSeconds)
}

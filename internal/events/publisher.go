// Package events publishes session transcripts to Kafka as an optional tap.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/metrics"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
	Enabled      bool
}

// Publisher writes partial and final transcript records to separate topics,
// keyed by session id so one session stays on one partition. When disabled it
// only logs.
type Publisher struct {
	topics    map[string]string       // event type -> topic
	writers   map[string]*kafka.Writer // event type -> writer
	principal string
	enabled   bool
	metrics   *metrics.Metrics
}

// New creates a publisher. A nil config, Enabled=false or an empty broker
// list yields a log-only publisher.
func New(cfg *Config) *Publisher {
	p := &Publisher{
		topics:  map[string]string{},
		writers: map[string]*kafka.Writer{},
		metrics: metrics.DefaultMetrics,
	}
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return p
	}

	p.principal = cfg.Principal
	p.topics[models.EventPartial] = cfg.TopicPartial
	p.topics[models.EventFinal] = cfg.TopicFinal

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for broker DNS resolution
	transport := &kafka.Transport{
		Dial: (&kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}).DialFunc,
	}
	for eventType, topic := range p.topics {
		p.writers[eventType] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")
	return p
}

// Publish routes a record to the topic matching its event type. Ready and
// error records are not published.
func (p *Publisher) Publish(ctx context.Context, record models.TranscriptRecord) error {
	eventType := strings.TrimPrefix(record.EventType, models.RecordPrefix)
	topic, ok := p.topics[eventType]
	if !ok {
		return nil
	}

	start := time.Now()
	payload, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal record")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("sessionId", record.SessionID).
		RawJSON("payload", payload).
		Msg("Publishing transcript")

	writer := p.writers[eventType]
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(record.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(record.EventType)},
			{Key: "mode", Value: []byte(record.Mode)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}
	err = writer.WriteMessages(ctx, msg)
	p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
	if err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("sessionId", record.SessionID).
			Msg("Failed to write to Kafka")
		return err
	}
	return nil
}

// Close closes all writers.
func (p *Publisher) Close() error {
	var err error
	for eventType, w := range p.writers {
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("eventType", eventType).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSession(t *testing.T) {
	m := DefaultMetrics
	before := testutil.ToFloat64(m.SessionsActive.WithLabelValues("test-mode"))

	m.RecordSessionStart("test-mode")
	if got := testutil.ToFloat64(m.SessionsActive.WithLabelValues("test-mode")); got != before+1 {
		t.Errorf("expected active sessions %v, got %v", before+1, got)
	}

	m.RecordSessionEnd("test-mode", "final", 1.5)
	if got := testutil.ToFloat64(m.SessionsActive.WithLabelValues("test-mode")); got != before {
		t.Errorf("expected active sessions back to %v, got %v", before, got)
	}
}

func TestRecordFrameDropped(t *testing.T) {
	m := DefaultMetrics
	c := m.FramesDropped.WithLabelValues("test-mode", "throttle")
	before := testutil.ToFloat64(c)

	m.RecordFrameDropped("test-mode", "throttle")
	m.RecordFrameDropped("test-mode", "throttle")

	if got := testutil.ToFloat64(c); got != before+2 {
		t.Errorf("expected %v dropped frames, got %v", before+2, got)
	}
}

func TestRecordKafkaPublish_Error(t *testing.T) {
	m := DefaultMetrics
	errs := m.KafkaPublishErrors.WithLabelValues("test.topic", "final")
	before := testutil.ToFloat64(errs)

	m.RecordKafkaPublish("test.topic", "final", nil, 0.01)
	m.RecordKafkaPublish("test.topic", "final", errors.New("broker down"), 0.02)

	if got := testutil.ToFloat64(errs); got != before+1 {
		t.Errorf("expected one publish error recorded, got %v", got-before)
	}
}

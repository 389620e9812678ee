// Package models defines the data structures for transcript events.
package models

import "time"

// Event types sent to WebSocket clients.
const (
	EventReady   = "ready"
	EventPartial = "partial"
	EventFinal   = "final"
	EventError   = "error"
)

// Session modes.
const (
	ModeBatch       = "batch"
	ModeIncremental = "incremental"
)

// TranscriptEvent is one outbound message on a streaming session.
type TranscriptEvent struct {
	Type    string  `json:"type"`
	Text    *string `json:"text,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Ready returns the event announcing that a session accepts audio.
func Ready() TranscriptEvent {
	return TranscriptEvent{Type: EventReady}
}

// Partial returns an interim transcript event.
func Partial(text string) TranscriptEvent {
	return TranscriptEvent{Type: EventPartial, Text: &text}
}

// Final returns a final transcript event. Text is always present, even when empty.
func Final(text string) TranscriptEvent {
	return TranscriptEvent{Type: EventFinal, Text: &text}
}

// Error returns an error event carrying a human-readable message.
func Error(message string) TranscriptEvent {
	return TranscriptEvent{Type: EventError, Message: message}
}

// TextValue returns the event text or "" when absent.
func (e TranscriptEvent) TextValue() string {
	if e.Text == nil {
		return ""
	}
	return *e.Text
}

// RecordPrefix prefixes the event type of every published record.
const RecordPrefix = "transcription.transcript."

// TranscriptRecord is the envelope published to the transcript tap.
type TranscriptRecord struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	Terminal  bool   `json:"terminal"`
}

// NewRecord wraps ev for publication.
func NewRecord(sessionID, mode string, ev TranscriptEvent, terminal bool, at time.Time) TranscriptRecord {
	return TranscriptRecord{
		EventType: RecordPrefix + ev.Type,
		SessionID: sessionID,
		Mode:      mode,
		Timestamp: at.UnixMilli(),
		Text:      ev.TextValue(),
		Terminal:  terminal,
	}
}

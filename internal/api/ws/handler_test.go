package ws

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/service/session"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/stt/mock"
	"live-transcription-service/internal/service/transcode"
	"live-transcription-service/internal/service/transcription"
)

type silenceTranscoder struct{}

func (silenceTranscoder) Convert(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return err
	}
	return transcode.WritePCMFile(outputPath, transcode.PCM{
		Data:       make([]byte, 3200),
		SampleRate: transcode.TargetSampleRate,
		Channels:   transcode.TargetChannels,
	})
}

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// readUntilClosed collects events until the server closes the socket.
func readUntilClosed(t *testing.T, c *websocket.Conn) []models.TranscriptEvent {
	t.Helper()
	var events []models.TranscriptEvent
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev models.TranscriptEvent
		if err := c.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Logf("read ended: %v", err)
			}
			return events
		}
		events = append(events, ev)
	}
}

func readEvent(t *testing.T, c *websocket.Conn) models.TranscriptEvent {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev models.TranscriptEvent
	if err := c.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestHandler_BatchSession(t *testing.T) {
	reg := stt.NewRegistry("mock", func(ctx context.Context) (stt.BatchRecognizer, error) {
		return mock.NewBatchWithScript([]string{"bom dia"}), nil
	}, "", nil)
	opts := transcription.DefaultBatchOptions()
	opts.TempDir = t.TempDir()
	h := NewHandler(session.NewController(models.ModeBatch, session.Options{}), transcription.NewBatchFactory(reg, silenceTranscoder{}, opts))

	c := dial(t, h)
	if ev := readEvent(t, c); ev.Type != models.EventReady {
		t.Fatalf("expected ready, got %+v", ev)
	}

	if err := c.WriteMessage(websocket.BinaryMessage, []byte("webm")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, c); ev.Type != models.EventPartial || ev.TextValue() != "bom dia" {
		t.Fatalf("expected partial, got %+v", ev)
	}

	if err := c.WriteMessage(websocket.TextMessage, []byte("stop")); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	events := readUntilClosed(t, c)
	if len(events) != 1 || events[0].Type != models.EventFinal || events[0].TextValue() != "bom dia" {
		t.Errorf("expected single final, got %+v", events)
	}
}

func TestHandler_StopWithoutAudio(t *testing.T) {
	reg := stt.NewRegistry("", nil, "mock", func(ctx context.Context) (stt.IncrementalRecognizer, error) {
		return mock.NewIncremental(), nil
	})
	h := NewHandler(session.NewController(models.ModeIncremental, session.Options{}), transcription.NewIncrementalFactory(reg))

	c := dial(t, h)
	if err := c.WriteMessage(websocket.TextMessage, []byte("STOP")); err != nil {
		t.Fatalf("write: %v", err)
	}

	events := readUntilClosed(t, c)
	if len(events) != 2 {
		t.Fatalf("expected ready and final, got %+v", events)
	}
	if events[0].Type != models.EventReady || events[1].Type != models.EventFinal || events[1].TextValue() != "" {
		t.Errorf("unexpected events %+v", events)
	}
	if events[1].Text == nil {
		t.Error("expected final to carry an empty text field")
	}
}

func TestHandler_BackendUnavailable(t *testing.T) {
	reg := stt.NewRegistry("", nil, "vosk", nil)
	h := NewHandler(session.NewController(models.ModeIncremental, session.Options{}), transcription.NewIncrementalFactory(reg))

	c := dial(t, h)
	events := readUntilClosed(t, c)
	if len(events) != 1 || events[0].Type != models.EventError || events[0].Message == "" {
		t.Errorf("expected only an error event, got %+v", events)
	}
}

package transcription

import (
	"context"
	"errors"
	"testing"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/stt/mock"
)

// scriptedIncremental replays fixed frame results.
type scriptedIncremental struct {
	results  []stt.FrameResult
	errs     map[int]error
	panics   map[int]bool
	pending  string
	finalErr error
	calls    int
	closed   int
}

func (s *scriptedIncremental) AcceptFrame(ctx context.Context, frame []byte) (stt.FrameResult, error) {
	s.calls++
	if s.panics[s.calls] {
		panic("recognizer state corrupted")
	}
	if err := s.errs[s.calls]; err != nil {
		return stt.FrameResult{}, err
	}
	if s.calls > len(s.results) {
		return stt.FrameResult{}, nil
	}
	return s.results[s.calls-1], nil
}

func (s *scriptedIncremental) Finalize(ctx context.Context) (string, error) {
	return s.pending, s.finalErr
}

func (s *scriptedIncremental) Close() error {
	s.closed++
	return nil
}

func newTestIncremental(t *testing.T, rec stt.IncrementalRecognizer) *Incremental {
	t.Helper()
	reg := stt.NewRegistry("", nil, "mock", func(ctx context.Context) (stt.IncrementalRecognizer, error) {
		return rec, nil
	})
	i, err := NewIncremental(context.Background(), "test-session", reg)
	if err != nil {
		t.Fatalf("NewIncremental: %v", err)
	}
	return i
}

func TestIncremental_Events(t *testing.T) {
	rec := &scriptedIncremental{results: []stt.FrameResult{
		{Text: "bom"},
		{Text: "bom dia"},
		{Text: "bom dia"},
		{Text: ""},
		{Final: true, Text: "bom dia tudo bem"},
		{Text: "bom dia"},
		{Final: true, Text: ""},
		{Text: "eu"},
	}}
	i := newTestIncremental(t, rec)

	want := []*models.TranscriptEvent{
		ptr(models.Partial("bom")),
		ptr(models.Partial("bom dia")),
		nil, // duplicate partial suppressed
		nil, // empty partial
		ptr(models.Final("bom dia tudo bem")),
		ptr(models.Partial("bom dia")), // last partial was reset by the utterance final
		nil, // empty utterance final
		ptr(models.Partial("eu")),
	}

	for n, w := range want {
		got := i.OnFrame(context.Background(), Frame{Seq: uint64(n + 1), Data: []byte{0, 0}})
		switch {
		case w == nil && got != nil:
			t.Errorf("frame %d: expected no event, got %+v", n+1, got)
		case w != nil && got == nil:
			t.Errorf("frame %d: expected %+v, got none", n+1, w)
		case w != nil && (got.Type != w.Type || got.TextValue() != w.TextValue()):
			t.Errorf("frame %d: got %s %q, want %s %q", n+1, got.Type, got.TextValue(), w.Type, w.TextValue())
		}
	}
}

func TestIncremental_RecognizerErrorDropsFrame(t *testing.T) {
	rec := &scriptedIncremental{
		results: []stt.FrameResult{{Text: "oi"}, {Text: "oi"}, {Text: "oi tudo"}},
		errs:    map[int]error{2: errors.New("bad frame")},
	}
	i := newTestIncremental(t, rec)

	i.OnFrame(context.Background(), Frame{Seq: 1, Data: []byte{1}})
	if ev := i.OnFrame(context.Background(), Frame{Seq: 2, Data: []byte{1}}); ev != nil {
		t.Errorf("expected dropped frame, got %+v", ev)
	}
	ev := i.OnFrame(context.Background(), Frame{Seq: 3, Data: []byte{1}})
	if ev == nil || ev.TextValue() != "oi tudo" {
		t.Errorf("expected session to continue, got %+v", ev)
	}
}

func TestIncremental_RecognizerPanicDropsFrame(t *testing.T) {
	rec := &scriptedIncremental{
		results: []stt.FrameResult{{Text: "oi"}, {Text: "oi"}, {Text: "oi tudo"}},
		panics:  map[int]bool{2: true},
	}
	i := newTestIncremental(t, rec)

	i.OnFrame(context.Background(), Frame{Seq: 1, Data: []byte{1}})
	if ev := i.OnFrame(context.Background(), Frame{Seq: 2, Data: []byte{1}}); ev != nil {
		t.Errorf("expected dropped frame, got %+v", ev)
	}
	ev := i.OnFrame(context.Background(), Frame{Seq: 3, Data: []byte{1}})
	if ev == nil || ev.TextValue() != "oi tudo" {
		t.Errorf("expected session to continue after panic, got %+v", ev)
	}
}

func TestGuarded_ReportsPanicAsRecognitionError(t *testing.T) {
	_, err := guarded("vosk", func() (stt.FrameResult, error) {
		panic("boom")
	})
	var re *stt.RecognitionError
	if !errors.As(err, &re) || re.Provider != "vosk" {
		t.Errorf("expected RecognitionError from vosk, got %v", err)
	}
}

func TestIncremental_Flush(t *testing.T) {
	tests := []struct {
		name     string
		pending  string
		finalErr error
		wantText string
		wantErr  bool
	}{
		{"pending utterance", " pode mandar ", nil, "pode mandar", false},
		{"nothing pending", "", nil, "", false},
		{"finalize failure", "", errors.New("pipe closed"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := newTestIncremental(t, &scriptedIncremental{pending: tt.pending, finalErr: tt.finalErr})
			ev, err := i.Flush(context.Background())
			if tt.wantErr {
				var re *stt.RecognitionError
				if !errors.As(err, &re) {
					t.Errorf("expected RecognitionError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Type != models.EventFinal || ev.Text == nil || *ev.Text != tt.wantText {
				t.Errorf("unexpected final %+v", ev)
			}
		})
	}
}

func TestIncremental_CloseOnce(t *testing.T) {
	rec := &scriptedIncremental{}
	i := newTestIncremental(t, rec)

	i.Close()
	i.Close()
	if rec.closed != 1 {
		t.Errorf("expected recognizer closed once, got %d", rec.closed)
	}
}

func TestIncremental_FreshRecognizerPerSession(t *testing.T) {
	built := 0
	reg := stt.NewRegistry("", nil, "mock", func(ctx context.Context) (stt.IncrementalRecognizer, error) {
		built++
		return mock.NewIncremental(), nil
	})
	factory := NewIncrementalFactory(reg)

	for n := 0; n < 2; n++ {
		s, err := factory(context.Background(), "s")
		if err != nil {
			t.Fatalf("factory: %v", err)
		}
		if s.Mode() != models.ModeIncremental {
			t.Errorf("unexpected mode %q", s.Mode())
		}
		s.Close()
	}
	if built != 2 {
		t.Errorf("expected one recognizer per session, built %d", built)
	}
}

func TestIncrementalFactory_Unavailable(t *testing.T) {
	reg := stt.NewRegistry("", nil, "vosk", nil)
	s, err := NewIncrementalFactory(reg)(context.Background(), "s")
	if !errors.Is(err, stt.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
	if s != nil {
		t.Error("expected nil strategy on failure")
	}
}

func ptr(ev models.TranscriptEvent) *models.TranscriptEvent {
	return &ev
}

package http

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"live-transcription-service/internal/app"
	"live-transcription-service/internal/config"
)

func newTestRouter(t *testing.T) (http.Handler, *app.Application, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Service.ClientLogPath = filepath.Join(t.TempDir(), "logs", "client.log")
	application := app.New(cfg)

	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Route", r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	})
	return NewRouter(application, Routes{Transcribe: stub, Incremental: stub}), application, cfg.Service.ClientLogPath
}

func TestRouter_Health(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body["ok"] {
		t.Errorf(`expected {"ok":true}, got %s`, rec.Body.String())
	}
}

func TestRouter_Readiness(t *testing.T) {
	r, application, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before start, got %d", rec.Code)
	}

	application.Start()
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 after start, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/liveness", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected liveness 200, got %d", rec.Code)
	}
}

func TestRouter_StreamingRoutes(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for _, path := range []string{"/ws/transcribe", "/ws/incremental", "/ws/vosk"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusTeapot || rec.Header().Get("X-Route") != path {
				t.Errorf("expected stub handler for %s, got %d", path, rec.Code)
			}
		})
	}
}

func TestClientLog(t *testing.T) {
	r, _, path := newTestRouter(t)

	bodies := []string{
		`{"event":"mic_started","ts":1}`,
		`{"event":"ws_closed","code":1000}`,
	}
	for _, b := range bodies {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/client-log", strings.NewReader(b)))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open client log: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line is not JSON: %q", sc.Text())
		}
		lines = append(lines, m)
	}
	if len(lines) != 2 || lines[0]["event"] != "mic_started" || lines[1]["event"] != "ws_closed" {
		t.Errorf("unexpected client log contents %+v", lines)
	}
}

func TestClientLog_RejectsBadPayload(t *testing.T) {
	r, _, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "hello", http.StatusBadRequest},
		{"array", `[1,2]`, http.StatusBadRequest},
		{"too large", `{"x":"` + strings.Repeat("a", maxClientLogBody) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/client-log", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

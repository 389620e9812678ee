package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/observability/logging"
)

const maxClientLogBody = 64 << 10

// ClientLog appends frontend diagnostics to a JSONL file, one object per line.
type ClientLog struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewClientLog creates a handler writing to path. The directory is created on
// first write.
func NewClientLog(path string) *ClientLog {
	return &ClientLog{
		path:   path,
		logger: logging.WithComponent("client-log"),
	}
}

func (c *ClientLog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxClientLogBody+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "unreadable body"})
		return
	}
	if len(body) > maxClientLogBody {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"detail": "payload too large"})
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "payload must be a JSON object"})
		return
	}

	if err := c.append(payload); err != nil {
		c.logger.Error().Err(err).Str("path", c.path).Msg("Failed writing client log")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed writing log"})
		return
	}

	c.logger.Info().Interface("event", payload["event"]).Msg("client-log")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (c *ClientLog) append(payload map[string]any) error {
	line, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode client log: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create client log dir: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open client log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("write client log: %w", err)
	}
	return f.Close()
}

package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"live-transcription-service/internal/app"
)

// Routes holds the streaming endpoints mounted by the router.
type Routes struct {
	Transcribe  http.Handler // chunked-batch sessions
	Incremental http.Handler // incremental sessions
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, routes Routes) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Frontend diagnostics
	r.Post("/client-log", NewClientLog(application.Cfg.Service.ClientLogPath).ServeHTTP)

	// Streaming sessions
	r.Group(func(r chi.Router) {
		r.Use(trackSessions(application))
		r.Handle("/ws/transcribe", routes.Transcribe)
		r.Handle("/ws/incremental", routes.Incremental)
		r.Handle("/ws/vosk", routes.Incremental)
	})

	return r
}

func trackSessions(application *app.Application) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admitted := application.SessionOpened()
			defer application.SessionClosed()
			if !admitted {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package ws serves streaming sessions over WebSocket.
package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/service/session"
	"live-transcription-service/internal/service/transcription"
)

const (
	maxMessageSize = 8 << 20
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades requests and hands each connection to a session controller.
type Handler struct {
	controller *session.Controller
	factory    transcription.Factory
}

// NewHandler creates a WebSocket handler for one session mode.
func NewHandler(controller *session.Controller, factory transcription.Factory) *Handler {
	return &Handler{controller: controller, factory: factory}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("WebSocket upgrade failed")
		return
	}
	wsConn.SetReadLimit(maxMessageSize)

	log.Info().
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket connected")

	h.controller.Run(r.Context(), NewConn(wsConn), h.factory)
}

// Conn adapts a gorilla connection to session.Conn.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps ws.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Receive returns the next text or binary message. Ping, pong and close
// frames are handled by gorilla; a close frame surfaces as an error.
func (c *Conn) Receive() (session.Message, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return session.Message{}, err
		}
		switch mt {
		case websocket.TextMessage:
			return session.Message{Kind: session.TextMessage, Data: data}, nil
		case websocket.BinaryMessage:
			return session.Message{Kind: session.BinaryMessage, Data: data}, nil
		}
	}
}

// Send writes ev as a JSON text message.
func (c *Conn) Send(ev models.TranscriptEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(ev)
}

// Close sends a normal closure frame when possible and closes the socket.
// Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()

		if err := c.ws.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

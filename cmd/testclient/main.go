package main

import (
	"flag"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"live-transcription-service/internal/models"
)

func main() {
	url := flag.String("url", "ws://localhost:8000/ws/transcribe", "WebSocket endpoint")
	control := flag.String("control", "stop", "Control message sent after connecting")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *url)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(*control)); err != nil {
		log.Fatalf("failed to send control message: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var ev models.TranscriptEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Println("Server closed the session")
				return
			}
			log.Fatalf("failed to read event: %v", err)
		}
		log.Printf("Received event: type=%s text=%q message=%q", ev.Type, ev.TextValue(), ev.Message)
		if ev.Type == models.EventFinal || ev.Type == models.EventError {
			return
		}
	}
}

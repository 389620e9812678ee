package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/service/transcode"
)

// Stream audio in chunks to simulate real-time capture.
// At 16kHz 16-bit mono = 32000 bytes/second
// 100ms chunks = 3200 bytes
const chunkIntervalMs = 100

func main() {
	server := flag.String("server", "ws://localhost:8000", "Service base URL")
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "WAV file (16kHz 16-bit mono) streamed to the incremental endpoint")
	chunks := flag.Bool("chunks", false, "Treat the positional arguments as self-contained compressed chunks for the batch endpoint")
	gap := flag.Duration("gap", 1600*time.Millisecond, "Delay between compressed chunks")
	flag.Parse()

	endpoint := *server + "/ws/incremental"
	if *chunks {
		endpoint = *server + "/ws/transcribe"
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", endpoint)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev models.TranscriptEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read ended: %v", err)
				}
				return
			}
			switch ev.Type {
			case models.EventError:
				log.Printf("[error] %s", ev.Message)
			default:
				log.Printf("[%s] %s", ev.Type, ev.TextValue())
			}
		}
	}()

	startTime := time.Now()
	if *chunks {
		sendChunks(conn, flag.Args(), *gap)
	} else {
		sendPCM(conn, *audioFile)
	}
	log.Printf("Finished streaming in %v, waiting for final transcript...", time.Since(startTime))

	if err := conn.WriteMessage(websocket.TextMessage, []byte("stop")); err != nil {
		log.Fatalf("Failed to send stop: %v", err)
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Fatal("Timed out waiting for the final transcript")
	}
}

func sendPCM(conn *websocket.Conn, path string) {
	pcm, err := transcode.ReadPCM(path)
	if err != nil {
		log.Fatalf("Failed to read audio file: %v", err)
	}
	log.Printf("WAV file: channels=%d sampleRate=%d duration=%v", pcm.Channels, pcm.SampleRate, pcm.Duration())
	if pcm.SampleRate != transcode.TargetSampleRate || pcm.Channels != transcode.TargetChannels {
		log.Printf("Warning: expected %d Hz mono audio", transcode.TargetSampleRate)
	}

	chunkSize := pcm.SampleRate * pcm.Channels * 2 * chunkIntervalMs / 1000
	var chunkNum int
	for off := 0; off < len(pcm.Data); off += chunkSize {
		end := min(off+chunkSize, len(pcm.Data))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm.Data[off:end]); err != nil {
			log.Fatalf("Failed to send frame: %v", err)
		}
		chunkNum++
		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, end)
		}
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}
}

func sendChunks(conn *websocket.Conn, paths []string, gap time.Duration) {
	if len(paths) == 0 {
		log.Fatal("No chunk files given")
	}
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read chunk %s: %v", path, err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			log.Fatalf("Failed to send chunk: %v", err)
		}
		log.Printf("Sent chunk %d/%d (%d bytes)", i+1, len(paths), len(data))
		time.Sleep(gap)
	}
}

// streamclient streams an audio file to the relay and prints the
// transcript events it gets back. Useful for exercising a running
// relay without a browser client.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"speech-relay-service/internal/models"
)

// 100ms chunks simulate real-time capture. At 16kHz 16-bit mono that
// is 3200 bytes per chunk.
const (
	chunkSize       = 3200
	chunkIntervalMs = 100
)

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.webm", "Path to audio file")
	serverURL := flag.String("server", "ws://localhost:8080/v1/stream", "Relay websocket URL")
	token := flag.String("token", os.Getenv("RELAY_TOKEN"), "Bearer token")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := http.Header{}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(*serverURL, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			log.Fatalf("Failed to connect (%d): %s", resp.StatusCode, body)
		}
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverURL)

	done := make(chan struct{})
	go readTranscripts(conn, done)

	buf := make([]byte, chunkSize)
	chunks := 0
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if err := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); err != nil {
				log.Fatalf("Failed to send audio: %v", err)
			}
			chunks++
			time.Sleep(chunkIntervalMs * time.Millisecond)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio file: %v", err)
		}
	}
	log.Printf("Sent %d chunks, signalling completion", chunks)

	completed, _ := json.Marshal(models.Envelope{Event: models.EventClientCompleted})
	if err := conn.WriteMessage(websocket.TextMessage, completed); err != nil {
		log.Fatalf("Failed to send client_completed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Println("Timed out waiting for server_completed")
	}
}

func readTranscripts(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}

		switch env.Event {
		case models.EventTranscript:
			if env.Data == nil {
				continue
			}
			if env.Data.IsFinal {
				wpm := "n/a"
				if env.Data.SpeedWPM != nil {
					wpm = strconv.FormatFloat(*env.Data.SpeedWPM, 'f', 1, 64)
				}
				log.Printf("FINAL   %q clarity=%.2f wpm=%s avg=%.1f",
					env.Data.Transcript, env.Data.SpeechClarity, wpm, env.Data.AverageSpeedWPM)
			} else {
				log.Printf("interim %q", env.Data.Transcript)
			}
		case models.EventServerCompleted:
			log.Println("Server completed")
			return
		}
	}
}

package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"speech-relay-service/internal/models"
)

var errEmitterClosed = errors.New("emitter closed")

// connEmitter serializes outbound writes on one websocket connection.
// The websocket allows a single concurrent writer, and the session's
// result flow runs on the engine's receive goroutine, so every write
// goes through the mutex. After shutdown, writes are silently dropped
// at this boundary: the session may still be draining results while
// the transport is already gone.
type connEmitter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newConnEmitter(conn *websocket.Conn) *connEmitter {
	return &connEmitter{conn: conn}
}

func (e *connEmitter) EmitTranscript(ev models.Transcript) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errEmitterClosed
	}
	return e.conn.WriteJSON(models.Envelope{Event: models.EventTranscript, Data: &ev})
}

func (e *connEmitter) EmitServerCompleted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errEmitterClosed
	}
	return e.conn.WriteJSON(models.Envelope{Event: models.EventServerCompleted})
}

// shutdown marks the transport gone. Idempotent.
func (e *connEmitter) shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

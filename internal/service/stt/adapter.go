// Package stt defines the interface for streaming speech-to-text engines.
package stt

import "context"

// Callback receives recognition results from the engine.
//
// The engine delivers results one at a time, in the order they were
// produced; implementations must not assume a particular goroutine.
type Callback interface {
	// OnResult is called for each recognition result, interim or final.
	OnResult(res Result)

	// OnEnd is called exactly once when the engine's result stream ends
	// naturally. No further callbacks follow.
	OnEnd()

	// OnError is called when the result stream fails. Terminal for the
	// stream; no further callbacks follow.
	OnError(err error)
}

// Engine is a streaming speech-to-text provider bound to one session.
type Engine interface {
	// Start opens the recognition stream and sends its fixed configuration.
	Start(ctx context.Context, cb Callback) error

	// SendAudio forwards one opaque audio chunk. Chunks must reach the
	// provider in call order.
	SendAudio(ctx context.Context, audio []byte) error

	// Close half-closes the audio side. Results already in flight keep
	// arriving until the provider ends the stream. Idempotent.
	Close() error
}

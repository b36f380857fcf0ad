// Package session owns the audio-in / transcript-out stream pair for
// one client connection.
package session

import "fmt"

// State represents the lifecycle state of a session.
type State int

const (
	// StateConnecting - handshake received, credential gate not yet run.
	StateConnecting State = iota
	// StateAuthenticated - gate passed, recognition stream being opened.
	StateAuthenticated
	// StateStreaming - audio flowing in, results flowing out.
	StateStreaming
	// StateClosing - a termination trigger fired; the recognition
	// stream is being torn down.
	StateClosing
	// StateClosed - terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateStreaming:
		return "STREAMING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for the terminal state.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Close reasons, used for logging and metrics labels.
const (
	ReasonClientCompleted = "client_completed"
	ReasonDisconnect      = "disconnect"
	ReasonUpstreamEnd     = "upstream_end"
	ReasonUpstreamError   = "upstream_error"
	ReasonIdleTimeout     = "idle_timeout"
)

// Package models defines the data structures for transcript events.
package models

// Named events carried over a relay connection.
const (
	EventTranscript      = "transcript"
	EventServerCompleted = "server_completed"
	EventClientCompleted = "client_completed"
)

// Envelope is the outer frame for every text message on a relay
// connection. Binary messages carry raw audio and are not enveloped.
type Envelope struct {
	Event string      `json:"event"`
	Data  *Transcript `json:"data,omitempty"`
}

// Transcript is a single transcript event sent to the client.
//
// Interim results carry only Transcript and IsFinal=false. Final results
// additionally carry SpeechClarity (engine confidence in [0,1]), SpeedWPM
// (this segment's speaking rate) and AverageSpeedWPM (the session's
// running smoothed rate). SpeedWPM is a pointer: a final segment with no
// timed words has no per-segment rate, and "no value" is not zero.
type Transcript struct {
	Transcript      string   `json:"transcript"`
	IsFinal         bool     `json:"isFinal"`
	SpeechClarity   float64  `json:"speechClarity,omitempty"`
	SpeedWPM        *float64 `json:"speedWPM,omitempty"`
	AverageSpeedWPM float64  `json:"averageSpeedWPM,omitempty"`
}

// TranscriptPartial is the event-bus mirror of an interim transcript.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal is the event-bus mirror of a final transcript.
type TranscriptFinal struct {
	EventType       string   `json:"eventType"`
	SessionID       string   `json:"sessionId"`
	Timestamp       int64    `json:"timestamp"`
	Text            string   `json:"text"`
	SpeechClarity   float64  `json:"speechClarity"`
	SpeedWPM        *float64 `json:"speedWPM,omitempty"`
	AverageSpeedWPM float64  `json:"averageSpeedWPM"`
}

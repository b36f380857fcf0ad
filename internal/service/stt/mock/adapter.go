// Package mock provides a scripted STT engine for tests and for running
// the relay without cloud credentials. It simulates realistic streaming
// behavior: progressive interim results, one timed final per utterance,
// and a natural end of stream after Close.
package mock

import (
	"context"
	"sync"
	"time"

	"speech-relay-service/internal/service/stt"
)

// SimulatedUtterance is one scripted utterance with progressive interim
// transcripts and a timed final.
type SimulatedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
	Words      []stt.Word
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"I want", "I want to", "I want to cancel"},
		Final:      "I want to cancel my subscription",
		Confidence: 0.94,
		Words: []stt.Word{
			{Text: "I", Start: 0.0, End: 0.2},
			{Text: "want", Start: 0.2, End: 0.5},
			{Text: "to", Start: 0.5, End: 0.7},
			{Text: "cancel", Start: 0.7, End: 1.2},
			{Text: "my", Start: 1.2, End: 1.4},
			{Text: "subscription", Start: 1.4, End: 2.2},
		},
	},
	{
		Partials:   []string{"Yes", "Yes please"},
		Final:      "Yes please go ahead",
		Confidence: 0.97,
		Words: []stt.Word{
			{Text: "Yes", Start: 0.0, End: 0.4},
			{Text: "please", Start: 0.4, End: 0.9},
			{Text: "go", Start: 0.9, End: 1.1},
			{Text: "ahead", Start: 1.1, End: 1.6},
		},
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you very much",
		Confidence: 0.98,
		Words: []stt.Word{
			{Text: "Thank", Start: 0.0, End: 0.3},
			{Text: "you", Start: 0.3, End: 0.5},
			{Text: "very", Start: 0.5, End: 0.8},
			{Text: "much", Start: 0.8, End: 1.1},
		},
	},
}

// Adapter implements stt.Engine with scripted responses. One interim is
// delivered per audio chunk; once the script runs out the final result
// follows. Close ends the stream, delivering OnEnd after any pending
// final.
type Adapter struct {
	Delay time.Duration // delivery delay per callback; 0 means synchronous

	mu           sync.Mutex
	cb           stt.Callback
	utterance    SimulatedUtterance
	partialIndex int
	finalSent    bool
	closed       bool
	ended        bool
}

var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock engine, cycling through the default utterances.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return &Adapter{utterance: DefaultUtterances[idx]}
}

// NewScripted creates a mock engine with a fixed utterance.
func NewScripted(u SimulatedUtterance) *Adapter {
	return &Adapter{utterance: u}
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	a.cb = cb
	a.mu.Unlock()
	return nil
}

// SendAudio simulates receiving audio and triggers the next scripted
// result: one interim per chunk, then the final.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}

	var res *stt.Result
	if a.partialIndex < len(a.utterance.Partials) {
		res = &stt.Result{
			IsFinal: false,
			Alternatives: []stt.Alternative{
				{Transcript: a.utterance.Partials[a.partialIndex]},
			},
		}
		a.partialIndex++
	} else if !a.finalSent {
		a.finalSent = true
		res = a.finalResult()
	}
	cb := a.cb
	delay := a.Delay
	a.mu.Unlock()

	if res != nil {
		deliver(delay, func() { cb.OnResult(*res) })
	}
	return nil
}

// Close ends the mock session. A final still owed by the script is
// delivered first, then the stream ends with OnEnd. Idempotent.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true

	var res *stt.Result
	if !a.finalSent && a.cb != nil && a.partialIndex > 0 {
		a.finalSent = true
		res = a.finalResult()
	}
	cb := a.cb
	delay := a.Delay
	a.ended = true
	a.mu.Unlock()

	if cb != nil {
		deliver(delay, func() {
			if res != nil {
				cb.OnResult(*res)
			}
			cb.OnEnd()
		})
	}
	return nil
}

// Fail simulates a provider error ending the stream.
func (a *Adapter) Fail(err error) {
	a.mu.Lock()
	cb := a.cb
	a.closed = true
	a.mu.Unlock()

	if cb != nil {
		cb.OnError(err)
	}
}

func (a *Adapter) finalResult() *stt.Result {
	return &stt.Result{
		IsFinal: true,
		Alternatives: []stt.Alternative{
			{
				Transcript: a.utterance.Final,
				Confidence: a.utterance.Confidence,
				Words:      a.utterance.Words,
			},
		},
	}
}

func deliver(delay time.Duration, fn func()) {
	if delay <= 0 {
		fn()
		return
	}
	go func() {
		time.Sleep(delay)
		fn()
	}()
}

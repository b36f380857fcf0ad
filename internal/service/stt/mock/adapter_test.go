package mock

import (
	"context"
	"errors"
	"testing"

	"speech-relay-service/internal/service/stt"
)

// recorder implements stt.Callback and records everything delivered.
type recorder struct {
	results []stt.Result
	ended   int
	errs    []error
}

func (r *recorder) OnResult(res stt.Result) { r.results = append(r.results, res) }
func (r *recorder) OnEnd()                  { r.ended++ }
func (r *recorder) OnError(err error)       { r.errs = append(r.errs, err) }

func TestAdapter_ScriptedSequence(t *testing.T) {
	u := SimulatedUtterance{
		Partials:   []string{"hel", "hello"},
		Final:      "hello world",
		Confidence: 0.9,
		Words: []stt.Word{
			{Text: "hello", Start: 0, End: 1},
			{Text: "world", Start: 1, End: 2},
		},
	}
	a := NewScripted(u)
	rec := &recorder{}

	ctx := context.Background()
	if err := a.Start(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One interim per chunk, then the final.
	for i := 0; i < 3; i++ {
		if err := a.SendAudio(ctx, []byte{0x01}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	if len(rec.results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(rec.results))
	}
	if rec.results[0].IsFinal || rec.results[1].IsFinal {
		t.Error("expected first two results to be interim")
	}
	if !rec.results[2].IsFinal {
		t.Error("expected third result to be final")
	}

	alt, ok := rec.results[2].Top()
	if !ok {
		t.Fatal("expected a top alternative on the final")
	}
	if alt.Transcript != "hello world" {
		t.Errorf("expected final transcript 'hello world', got %q", alt.Transcript)
	}
	if len(alt.Words) != 2 {
		t.Errorf("expected 2 timed words, got %d", len(alt.Words))
	}
}

func TestAdapter_CloseEndsStream(t *testing.T) {
	a := NewScripted(DefaultUtterances[0])
	rec := &recorder{}

	ctx := context.Background()
	if err := a.Start(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.SendAudio(ctx, []byte{0x01}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.ended != 1 {
		t.Errorf("expected OnEnd exactly once, got %d", rec.ended)
	}
	// Pending final is delivered before the end of stream.
	last := rec.results[len(rec.results)-1]
	if !last.IsFinal {
		t.Error("expected a final result before end of stream")
	}
}

func TestAdapter_CloseIdempotent(t *testing.T) {
	a := NewScripted(DefaultUtterances[0])
	rec := &recorder{}

	if err := a.Start(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if rec.ended != 1 {
		t.Errorf("expected OnEnd exactly once after double close, got %d", rec.ended)
	}
}

func TestAdapter_SendAfterCloseIsNoop(t *testing.T) {
	a := NewScripted(DefaultUtterances[0])
	rec := &recorder{}

	ctx := context.Background()
	if err := a.Start(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := len(rec.results)
	if err := a.SendAudio(ctx, []byte{0x01}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.results) != before {
		t.Error("expected no results after close")
	}
}

func TestAdapter_Fail(t *testing.T) {
	a := NewScripted(DefaultUtterances[0])
	rec := &recorder{}

	if err := a.Start(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("stream reset")
	a.Fail(boom)

	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], boom) {
		t.Errorf("expected recorded error %v, got %v", boom, rec.errs)
	}
}

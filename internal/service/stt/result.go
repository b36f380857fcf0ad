package stt

// Word is one recognized word with its time offsets, in seconds from the
// start of the audio stream.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Duration returns the word's spoken time in seconds.
func (w Word) Duration() float64 {
	return w.End - w.Start
}

// Alternative is one candidate transcription of a result window.
// Confidence and Words are populated only on final results.
type Alternative struct {
	Transcript string
	Confidence float64
	Words      []Word
}

// Result is a single recognition result window. Alternatives are ordered
// best-first; engines may deliver a result with no alternatives, which
// consumers must treat as empty rather than malformed.
type Result struct {
	Alternatives []Alternative
	IsFinal      bool
}

// Top returns the best alternative, if any.
func (r Result) Top() (Alternative, bool) {
	if len(r.Alternatives) == 0 {
		return Alternative{}, false
	}
	return r.Alternatives[0], true
}

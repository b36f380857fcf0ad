// Package enrich turns raw recognition results into outbound transcript
// events, deriving confidence and speaking-rate metrics from the
// engine's word timings. All functions are pure.
package enrich

import (
	"speech-relay-service/internal/models"
	"speech-relay-service/internal/service/stt"
)

// Interim builds an interim transcript event. Interim results carry no
// confidence or rate. Returns false for a result with no alternatives,
// in which case nothing should be emitted.
func Interim(res stt.Result) (models.Transcript, bool) {
	alt, ok := res.Top()
	if !ok {
		return models.Transcript{}, false
	}
	return models.Transcript{
		Transcript: alt.Transcript,
		IsFinal:    false,
	}, true
}

// Final builds a final transcript event with confidence and the
// segment's speaking rate in words per minute. Returns false (dropped)
// when the result has no alternatives or the top alternative has no
// words; an empty final segment produces no event.
//
// A segment whose words sum to zero spoken time keeps its event but has
// no per-segment rate: dividing by zero duration is undefined and is
// represented as absence, never coerced to 0 or Inf.
func Final(res stt.Result) (models.Transcript, bool) {
	alt, ok := res.Top()
	if !ok {
		return models.Transcript{}, false
	}
	if len(alt.Words) == 0 {
		return models.Transcript{}, false
	}

	var totalSeconds float64
	for _, w := range alt.Words {
		totalSeconds += w.Duration()
	}

	ev := models.Transcript{
		Transcript:    alt.Transcript,
		IsFinal:       true,
		SpeechClarity: alt.Confidence,
	}
	if totalSeconds > 0 {
		wpm := float64(len(alt.Words)) / (totalSeconds / 60)
		ev.SpeedWPM = &wpm
	}
	return ev, true
}

// Package rate maintains a smoothed speaking-rate estimate across the
// final segments of one session.
package rate

// Tracker smooths per-segment speaking rates without storing history.
// The first real segment rate is assigned directly rather than averaged
// against the zero baseline; later segments are folded in with an
// exponential smoothing factor of 0.5. One Tracker per session; not
// safe for concurrent use without external synchronization.
type Tracker struct {
	initialized bool
	smoothed    float64
}

// Update folds one segment rate into the smoothed estimate and returns
// the new value. Call only for segments that produced a real rate.
func (t *Tracker) Update(segmentWPM float64) float64 {
	if !t.initialized {
		t.initialized = true
		t.smoothed = segmentWPM
	} else {
		t.smoothed = (t.smoothed + segmentWPM) / 2
	}
	return t.smoothed
}

// Current returns the running estimate, 0 until the first update.
func (t *Tracker) Current() float64 {
	return t.smoothed
}

// HasEstimate reports whether at least one real segment rate was seen.
func (t *Tracker) HasEstimate() bool {
	return t.initialized
}
